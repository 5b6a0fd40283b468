// Package disc interfaces with physical optical drives and the cdparanoia
// table-of-contents query.
//
// It parses `cdparanoia -Q` output into a TOC that answers the track geometry
// questions the ripper asks (start sector, length, expected file size,
// first/last track), fingerprints discs for session history, checks tray
// status, ejects media, and holds an exclusive per-device lock so only one
// process reads from a drive at a time.
package disc
