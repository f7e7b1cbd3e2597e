// pushkit is a small CLI around the push delivery core: generate a VAPID
// key pair, or deliver a notification to subscriptions stored in a JSON
// file. The host application normally drives the core directly through
// the webpush package; the CLI exists for setup and troubleshooting.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/trackmind/pushkit/internal/config"
	"github.com/trackmind/pushkit/internal/webpush"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}

	switch args[0] {
	case "keygen":
		return runKeygen()
	case "send":
		return runSend(args[1:])
	case "version", "--version":
		fmt.Printf("pushkit %s\n", version)
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Println(`Usage: pushkit <command>

Commands:
  keygen   generate a VAPID key pair and print it in .env format
  send     send a notification to subscriptions from a JSON file
  version  print the version

Send flags:
  --sub <file>      subscription JSON (single object or array)  [required]
  --title <text>    notification title                          [required]
  --body <text>     notification body                           [required]
  --url <path>      click-through URL
  --tag <tag>       replacement tag
  --exclude <id>    skip the subscriber with this user id or endpoint`)
}

func runKeygen() error {
	pub, priv, err := webpush.GenerateKeys()
	if err != nil {
		return err
	}
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", priv)
	return nil
}

// sendFlags holds parsed `send` arguments.
type sendFlags struct {
	subFile string
	title   string
	body    string
	url     string
	tag     string
	exclude string
}

func parseSendFlags(args []string) (*sendFlags, error) {
	flags := &sendFlags{}
	set := func(dst *string, name, val string) error {
		if val == "" {
			return fmt.Errorf("--%s requires a value", name)
		}
		*dst = val
		return nil
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, val, inline := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !inline {
			if i+1 < len(args) {
				val = args[i+1]
				i++
			}
		}
		var err error
		switch name {
		case "sub":
			err = set(&flags.subFile, name, val)
		case "title":
			err = set(&flags.title, name, val)
		case "body":
			err = set(&flags.body, name, val)
		case "url":
			err = set(&flags.url, name, val)
		case "tag":
			err = set(&flags.tag, name, val)
		case "exclude":
			err = set(&flags.exclude, name, val)
		default:
			err = fmt.Errorf("unknown flag %q", arg)
		}
		if err != nil {
			return nil, err
		}
	}
	if flags.subFile == "" || flags.title == "" || flags.body == "" {
		return nil, fmt.Errorf("send requires --sub, --title and --body")
	}
	return flags, nil
}

func runSend(args []string) error {
	flags, err := parseSendFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	creds, err := webpush.NewCredentials(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if err != nil {
		return err
	}

	subs, err := loadSubscriptions(flags.subFile)
	if err != nil {
		return err
	}

	sender := webpush.NewSender(cfg.SendTimeout)
	sender.SetTTL(cfg.TTL)
	dispatcher := webpush.NewDispatcher(creds, sender, logger)
	dispatcher.SetWorkers(cfg.Concurrency)
	dispatcher.SetSendTimeout(cfg.SendTimeout)

	payload := webpush.Payload{
		Title: flags.title,
		Body:  flags.body,
		URL:   flags.url,
		Tag:   flags.tag,
	}

	result := dispatcher.NotifyExcluding(context.Background(), subs, payload, flags.exclude)
	fmt.Printf("sent=%d failed=%d\n", result.Sent, result.Failed)
	if result.Sent == 0 && result.Failed > 0 {
		return fmt.Errorf("all %d deliveries failed", result.Failed)
	}
	return nil
}

// loadSubscriptions reads one subscription object or an array of them.
func loadSubscriptions(path string) ([]webpush.Subscriber, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var subs []webpush.Subscriber
		if err := json.Unmarshal(data, &subs); err != nil {
			return nil, fmt.Errorf("parse subscriptions: %w", err)
		}
		return subs, nil
	}

	sub, err := webpush.ParseSubscription(data)
	if err != nil {
		return nil, err
	}
	return []webpush.Subscriber{*sub}, nil
}
