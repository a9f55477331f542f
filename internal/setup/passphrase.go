// Package setup holds the interactive first-run helpers of the CLI.
package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"agentloop/internal/logger"
	"agentloop/internal/security"
)

var ErrPassphraseMismatch = errors.New("passphrases do not match")

// PromptOperatorHash asks for the IRC operator passphrase twice and returns
// its argon2id hash, ready for irc.operator_passhash.
func PromptOperatorHash(in io.Reader, out io.Writer) (string, error) {
	cyan := logger.GetColorFunc("cyan")
	green := logger.GetColorFunc("green")
	yellow := logger.GetColorFunc("yellow")
	white := logger.GetColorFunc("white")
	blue := logger.GetColorFunc("blue")

	fmt.Fprintln(out, blue("╔═══════════════════════════════════════════════╗"))
	fmt.Fprintln(out, blue("║         ")+yellow("IRC OPERATOR PASSPHRASE SETUP")+blue("         ║"))
	fmt.Fprintln(out, blue("╚═══════════════════════════════════════════════╝"))
	fmt.Fprintln(out, white("Operators unlock !reset, !tools and !status by sending"))
	fmt.Fprintln(out, white("the bot ")+cyan("!auth <passphrase>")+white(" in a private message."))
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)

	fmt.Fprint(out, blue("[1/2] ")+white("Enter a passphrase: "))
	passphrase, err := readLine(reader)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Fprint(out, blue("[2/2] ")+white("Repeat the passphrase: "))
	confirm, err := readLine(reader)
	if err != nil {
		return "", fmt.Errorf("reading confirmation: %w", err)
	}
	if passphrase != confirm {
		return "", ErrPassphraseMismatch
	}

	hash, err := security.GenerateHash(passphrase)
	if err != nil {
		return "", err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, green("✓ ")+white("Add this line to the [irc] section of your config:"))
	fmt.Fprintln(out, yellow(fmt.Sprintf("operator_passhash = %q", hash)))
	return hash, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
