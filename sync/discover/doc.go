// Package discover scans a repository tree for
// translatable resource groups ("keysets"). A keyset is
// an immediate subdirectory holding one JSON file per
// language; discovery is a pure filesystem read with no
// platform calls.
package discover
