package server

import (
	"fmt"

	"github.com/fatih/color"
)

const logo = ` ___          _      _____ _
| _ \_  _ ___| |_   |_   _(_)_ __  ___ _ _
|  _/ || (_-<| ' \    | | | | '  \/ -_) '_|
|_|  \_,_/__/|_||_|   |_| |_|_|_|_\___|_|`

func (s *Server) printBanner(addr string) {
	accent := color.New(color.FgHiCyan, color.Bold)
	name := color.New(color.FgHiWhite, color.Bold)
	label := color.New(color.FgHiBlack)
	val := color.New(color.FgHiGreen)
	warn := color.New(color.FgHiYellow)

	fmt.Println()
	accent.Println(logo)
	name.Println("  Push Timer")
	fmt.Println()

	info := func(k, v string) {
		label.Printf("  %-10s", k)
		val.Println(v)
	}

	info("listen", addr)

	if s.DatabaseURL != "" {
		info("database", "postgres")
	} else {
		info("database", "sqlite ("+s.StorageDir+")")
	}
	info("sweep", s.WorkerInterval.String())

	if s.vapid.Complete() {
		info("push", "enabled")
	} else {
		label.Printf("  %-10s", "push")
		warn.Println("disabled (no VAPID keys)")
	}

	if len(s.Notifiers) > 0 {
		info("mirror", fmt.Sprintf("%d notifier(s)", len(s.Notifiers)))
	}
	if s.Pruner != nil {
		info("retention", s.TimerRetention.String())
	}
	if s.Metrics {
		info("metrics", "/metrics")
	}
	if s.AutoTLS {
		info("tls", "auto (Let's Encrypt)")
	} else if s.TLSCert != "" {
		info("tls", "custom certificate")
	}

	fmt.Println()
}
