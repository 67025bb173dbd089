//go:build windows || odbc

package main

// The ODBC driver needs odbc32.dll on Windows or unixODBC elsewhere, so
// non-Windows builds opt in with -tags odbc.
import _ "github.com/alexbrainman/odbc"
