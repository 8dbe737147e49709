package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/spawnctl/internal/fetch"
)

// promptConfirmer asks the user, key by domain, whether newly seen signing
// keys should be trusted. Anything but an explicit yes is a refusal.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p *promptConfirmer) ConfirmKeys(req fetch.ConfirmRequest) (bool, error) {
	fmt.Fprintf(p.out, "Feed %s is signed with key(s) not yet trusted for %q:\n", req.Interface, req.Domain)
	for _, fp := range req.Fingerprints {
		fmt.Fprintf(p.out, "  %s\n", fp)
	}
	fmt.Fprintf(p.out, "Trust these keys to sign feeds from %q? [y/N] ", req.Domain)

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// refuseConfirmer is the non-interactive policy: unknown keys stay
// untrusted until someone adds them with `spawnctl trust add`.
type refuseConfirmer struct{}

func (refuseConfirmer) ConfirmKeys(fetch.ConfirmRequest) (bool, error) {
	return false, nil
}
