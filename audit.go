package hearth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditLog appends one block per completed request to a text file. The
// mutex serializes writers so concurrent requests cannot interleave records.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Record appends one audit block: timestamp, caller, route tag, prompt,
// response, then a delimiter line.
func (a *AuditLog) Record(user, prompt, response, routeTag string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("[%s] USER=%s ROUTE=%s\nPROMPT: %s\nRESPONSE: %s\n%s\n",
		time.Now().Format(time.RFC3339), user, routeTag, prompt, response,
		strings.Repeat("-", 40))
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}
