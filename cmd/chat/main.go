// Command chat is a terminal client for the askcv chat endpoint. The
// conversation lives only in the client; the server is stateless.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	url := flag.String("url", envOr("ASKCV_URL", "http://localhost:5000"), "askcv API base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per-question timeout")
	flag.Parse()

	p := tea.NewProgram(newModel(newClient(*url, *timeout)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		os.Exit(1)
	}
}
