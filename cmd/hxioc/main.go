package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pthm/hxioc/lib/config"
	"github.com/pthm/hxioc/lib/encoding"
	"github.com/pthm/hxioc/lib/state"
)

const version = "0.1.0"

var errNoSecret = errors.New("HXIOC_SECRET_KEY is not set")

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var cfg config.App
	config.MustLoad(&cfg)

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "decode":
		err = runDecode(cfg, args, os.Stdout)
	case "encode":
		err = runEncode(cfg, args, os.Stdin, os.Stdout)
	case "keygen":
		err = runKeygen(os.Stdout)
	case "version":
		fmt.Printf("hxioc version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hxioc - state snapshot tooling for hxioc applications

Usage:
  hxioc <command> [arguments]

Commands:
  decode [--sealed] <token>   Print the snapshot held by a state token as JSON
  encode [--sealed] [file]    Turn a JSON snapshot (file or stdin) into a token
  keygen                      Print a random secret for HXIOC_SECRET_KEY
  version                     Print version
  help                        Show this help

decode and encode read the secret from HXIOC_SECRET_KEY. Tokens are signed
unless --sealed is given or HXIOC_SEAL_SNAPSHOTS is set.

Examples:
  hxioc decode "$(pbpaste)"
  echo '{"counter-1":{"count":3}}' | hxioc encode`)
}

// splitFlags pulls --sealed out of args.
func splitFlags(cfg config.App, args []string) (encoding.Mode, []string) {
	mode := encoding.Signed
	if cfg.SealSnapshots {
		mode = encoding.Sealed
	}
	var rest []string
	for _, arg := range args {
		if arg == "--sealed" {
			mode = encoding.Sealed
		} else {
			rest = append(rest, arg)
		}
	}
	return mode, rest
}

func codecFor(cfg config.App) (*encoding.Codec, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	return encoding.NewCodec([]byte(cfg.Secret))
}

func runDecode(cfg config.App, args []string, out io.Writer) error {
	mode, rest := splitFlags(cfg, args)
	if len(rest) != 1 {
		return errors.New("decode takes exactly one token")
	}
	codec, err := codecFor(cfg)
	if err != nil {
		return err
	}

	snap, err := state.TokenSource(codec, mode, rest[0]).Load(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runEncode(cfg config.App, args []string, stdin io.Reader, out io.Writer) error {
	mode, rest := splitFlags(cfg, args)
	codec, err := codecFor(cfg)
	if err != nil {
		return err
	}

	var raw []byte
	switch len(rest) {
	case 0:
		raw, err = io.ReadAll(stdin)
	case 1:
		raw, err = os.ReadFile(rest[0])
	default:
		return errors.New("encode takes at most one file")
	}
	if err != nil {
		return err
	}

	snap, err := state.JSONSource(bytes.TrimSpace(raw)).Load(context.Background())
	if err != nil {
		return err
	}
	token, err := state.EncodeToken(codec, mode, snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func runKeygen(out io.Writer) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, hex.EncodeToString(key))
	return err
}
