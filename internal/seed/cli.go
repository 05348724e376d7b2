package seed

import (
	"io"
)

// ShowHelp prints usage information for the seed tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `MarkSense Seed Tool
===================

Submits generated classes to a running MarkSense service, saves one
snapshot per day and reads the history back to check it.

Usage:
  marksense-seed [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -days int
        Number of consecutive days to save (default 7)
  -students int
        Class size (default 30)
  -start string
        First day as YYYY-MM-DD (default: days before today)
  -workers int
        Concurrent series readers (default 4)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed uint
        Generator seed (default: derived from the run id)
  -output string
        Write the submitted rosters to this JSON file
  -log-format string
        text or json (default "text")
  -verbose
        Log every saved day and failed check
  -help
        Show this help message

Examples:
  # Seed a week of history
  marksense-seed

  # A term of a large class against another host
  marksense-seed -days 60 -students 120 -url http://localhost:8080
`)
}
