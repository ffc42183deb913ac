package parser

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/zhaobenny/voltbill/internal/model"
)

const (
	userSep   = ":"
	periodSep = ","
	fieldSep  = "|"
)

// Credential is one line of the credential log: username:value
type Credential struct {
	Username string
	Value    string // Legacy plaintext password or salt|hash
}

// Account is one line of the billing log: the records of a single user
type Account struct {
	Username string
	Records  []model.BillRecord
}

// ParseCredentialLine parses a username:value line.
// Blank and malformed lines report ok = false.
func ParseCredentialLine(line string) (Credential, bool) {
	if strings.TrimSpace(line) == "" {
		return Credential{}, false
	}
	username, value, found := strings.Cut(line, userSep)
	if !found || username == "" {
		return Credential{}, false
	}
	return Credential{Username: username, Value: value}, true
}

// FormatCredentialLine is the inverse of ParseCredentialLine
func FormatCredentialLine(c Credential) string {
	return c.Username + userSep + c.Value
}

// ParseAccountLine parses username:period[|units|amount[|meter]],...
// A bare period token, or detail fields that fail to parse, leave the
// corresponding values unknown.
func ParseAccountLine(line string) (Account, bool) {
	if strings.TrimSpace(line) == "" {
		return Account{}, false
	}
	username, periods, found := strings.Cut(line, userSep)
	username = strings.TrimSpace(username)
	if !found || username == "" {
		return Account{}, false
	}

	acct := Account{Username: username}
	periods = strings.TrimSpace(periods)
	if periods == "" {
		return acct, true
	}

	for _, token := range strings.Split(periods, periodSep) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		acct.Records = append(acct.Records, parseRecord(token))
	}
	return acct, true
}

func parseRecord(token string) model.BillRecord {
	fields := strings.Split(token, fieldSep)
	rec := model.BillRecord{PeriodKey: fields[0]}

	if len(fields) >= 3 {
		if units, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64); err == nil && units >= 0 {
			rec.Units = &units
		}
		if amount, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err == nil && amount >= 0 {
			rec.Amount = &amount
		}
	}
	if len(fields) >= 4 {
		rec.Meter = strings.TrimSpace(fields[3])
	}
	return rec
}

// FormatAccountLine is the inverse of ParseAccountLine. Records without full
// detail are written as a bare period key.
func FormatAccountLine(a Account) string {
	var sb strings.Builder
	sb.WriteString(a.Username)
	sb.WriteString(userSep)
	for i, r := range a.Records {
		if i > 0 {
			sb.WriteString(periodSep)
		}
		sb.WriteString(formatRecord(r))
	}
	return sb.String()
}

func formatRecord(r model.BillRecord) string {
	if !r.HasDetail() {
		return r.PeriodKey
	}
	s := r.PeriodKey + fieldSep +
		strconv.FormatInt(*r.Units, 10) + fieldSep +
		strconv.FormatFloat(*r.Amount, 'f', -1, 64)
	if r.Meter != "" {
		s += fieldSep + r.Meter
	}
	return s
}

// ReadCredentials reads every well-formed line of a credential log.
// skipped counts the lines that were ignored as malformed.
func ReadCredentials(r io.Reader) (creds []Credential, skipped int, err error) {
	err = scanLines(r, func(line string) {
		if c, ok := ParseCredentialLine(line); ok {
			creds = append(creds, c)
		} else if strings.TrimSpace(line) != "" {
			skipped++
		}
	})
	return creds, skipped, err
}

// WriteCredentials writes one line per credential
func WriteCredentials(w io.Writer, creds []Credential) error {
	bw := bufio.NewWriter(w)
	for _, c := range creds {
		if _, err := bw.WriteString(FormatCredentialLine(c) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadAccounts reads every well-formed line of a billing log.
// skipped counts the lines that were ignored as malformed.
func ReadAccounts(r io.Reader) (accts []Account, skipped int, err error) {
	err = scanLines(r, func(line string) {
		if a, ok := ParseAccountLine(line); ok {
			accts = append(accts, a)
		} else if strings.TrimSpace(line) != "" {
			skipped++
		}
	})
	return accts, skipped, err
}

// WriteAccounts writes one line per account
func WriteAccounts(w io.Writer, accts []Account) error {
	bw := bufio.NewWriter(w)
	for _, a := range accts {
		if _, err := bw.WriteString(FormatAccountLine(a) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func scanLines(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)

	// Accounts with long billing histories produce long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		fn(strings.TrimRight(scanner.Text(), "\r"))
	}
	return scanner.Err()
}
