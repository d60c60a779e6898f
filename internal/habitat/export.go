package habitat

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"habitat/internal/model"
)

const exportTimeLayout = time.DateTime

var exportRule = strings.Repeat("=", 50)

// ExportFilename names a download for kind ("alert" or "command") on day.
func ExportFilename(kind string, day time.Time) string {
	return fmt.Sprintf("%s-log-%s.txt", kind, day.Format(time.DateOnly))
}

func WriteAlertLog(w io.Writer, entries []model.AlertLogEntry) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("=== MARTIAN HABITAT ALERT LOG ===\n\n")
	for i, e := range entries {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "[%s]\nType: %s\nSeverity: %s\nMessage: %s\nUser: %s\n%s\n",
			e.Timestamp.Format(exportTimeLayout), e.Channel, e.Severity, e.Message, e.User, exportRule)
	}
	return bw.Flush()
}

func WriteCommandLog(w io.Writer, entries []model.CommandLogEntry) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("=== MARTIAN HABITAT COMMAND LOG ===\n\n")
	for i, e := range entries {
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "[%s]\nUser: %s\nCommand: %s\nResponse: %s\n%s\n",
			e.Timestamp.Format(exportTimeLayout), e.User, e.Command, e.Response, exportRule)
	}
	return bw.Flush()
}
