// Package main hosts the securerip CLI.
//
// Commands resolve configuration once through commandContext, build the
// concrete collaborators (cdparanoia client, TOC scanner, ejector, history
// store, ntfy reporter) and hand them to the ripping core. Interrupting a rip
// with Ctrl-C cancels the session context; the current track keeps whatever
// sectors were already trusted and the summary reports it as cancelled.
package main
