// cmd/unarc/passwords.go

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/avantoine/go-unarc/pkg/archive"
)

// passwordCandidates gathers the passwords to try, the --password flag
// first, then the lines of the --password-file.
func passwordCandidates(password, passwordFile string) ([]string, error) {
	var candidates []string
	if password != "" {
		candidates = append(candidates, password)
	}
	if passwordFile != "" {
		fromFile, err := readPasswordFile(passwordFile)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, fromFile...)
	}
	return candidates, nil
}

// readPasswordFile reads one password per line, skipping blank lines.
// Windows line endings are tolerated.
func readPasswordFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open password file: %w", err)
	}
	defer file.Close()

	passwords := make([]string, 0, 8)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		passwords = append(passwords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read password file %s: %w", path, err)
	}
	return passwords, nil
}

// sessionOpener is swapped in tests.
type sessionOpener func(opts *archive.Options, input string, password archive.PasswordCallback, logCb archive.LogCallback) (*archive.Session, error)

func openSession(opts *archive.Options, input string, password archive.PasswordCallback, logCb archive.LogCallback) (*archive.Session, error) {
	s := archive.New(opts)
	s.SetLogCallback(logCb)
	if err := s.Open(input, password); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openWithPasswords opens input, retrying with the next candidate password
// while the archive keeps asking for credentials the current one cannot
// satisfy. A session caches its first password for life, so every retry
// runs on a fresh session. Returns the open session and the password that
// worked, empty when none was needed.
func openWithPasswords(open sessionOpener, opts *archive.Options, input string, candidates []string, logCb archive.LogCallback) (*archive.Session, string, error) {
	attempt := 0
	for {
		asked := false
		offer := ""
		if attempt < len(candidates) {
			offer = candidates[attempt]
		}
		cb := func() string {
			asked = true
			return offer
		}

		s, err := open(opts, input, cb, logCb)
		if err == nil {
			if asked {
				return s, offer, nil
			}
			return s, "", nil
		}

		// only credential problems are worth retrying: the engine must
		// have consulted the password and another candidate must remain
		if !asked || attempt+1 >= len(candidates) {
			return nil, "", err
		}
		attempt++
	}
}
