package health

import (
	"fmt"
	"strings"
)

// FormatText formats a snapshot into a human-readable text block.
func FormatText(s Snapshot) string {
	var b strings.Builder
	b.WriteString("sharebridge Health\n")
	b.WriteString("==================\n\n")
	b.WriteString(fmt.Sprintf("Status: %s\n", s.Status))
	if s.Uptime != "" {
		b.WriteString(fmt.Sprintf("Uptime: %s\n", s.Uptime))
	}
	b.WriteString("\nMemory:\n")
	b.WriteString(fmt.Sprintf("  Allocated: %.2f MB\n", s.Memory.AllocMB))
	b.WriteString(fmt.Sprintf("  Total Allocated: %.2f MB\n", s.Memory.TotalAllocMB))
	b.WriteString(fmt.Sprintf("  System: %.2f MB\n", s.Memory.SysMB))
	b.WriteString(fmt.Sprintf("  GC Cycles: %d\n\n", s.Memory.NumGC))
	b.WriteString("Runtime:\n")
	b.WriteString(fmt.Sprintf("  Go Version: %s\n", s.Runtime.Version))
	b.WriteString(fmt.Sprintf("  OS/Arch: %s/%s\n", s.Runtime.OS, s.Runtime.Arch))
	b.WriteString(fmt.Sprintf("  CPUs: %d\n", s.Runtime.CPUs))
	b.WriteString(fmt.Sprintf("  Goroutines: %d\n", s.Goroutines))

	if s.Page != nil {
		b.WriteString("\nPage:\n")
		b.WriteString(fmt.Sprintf("  Connected: %t\n", s.Page.Connected))
	}

	if d := s.Delivery; d != nil {
		b.WriteString("\nDelivery:\n")
		b.WriteString(fmt.Sprintf("  State: %s\n", d.State))
		b.WriteString(fmt.Sprintf("  Generation: %d\n", d.Generation))
		if d.Path != "" {
			b.WriteString(fmt.Sprintf("  Pending Route: %s\n", d.Path))
			b.WriteString(fmt.Sprintf("  Attempts: %d\n", d.Attempts))
			b.WriteString(fmt.Sprintf("  Cold Start: %t\n", d.ColdStart))
		}
	}

	if img := s.Images; img != nil {
		b.WriteString("\nImages:\n")
		b.WriteString(fmt.Sprintf("  Dir: %s\n", img.Dir))
		if img.Error != "" {
			b.WriteString(fmt.Sprintf("  Error: %s\n", img.Error))
		} else {
			b.WriteString(fmt.Sprintf("  Files: %d (%.2f MB)\n", img.Files, float64(img.TotalBytes)/1024/1024))
		}
	}
	return b.String()
}
