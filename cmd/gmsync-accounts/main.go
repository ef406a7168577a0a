// Command gmsync-accounts provisions accounts for the syncd daemon: it
// writes an accounts row and stores the IMAP password through the same
// keyring/encrypted-fallback path syncd reads at runtime. One-shot CLI,
// not a long-running process.
//
// Usage:
//
//	gmsync-accounts add -email user@gmail.com -host imap.gmail.com -port 993 \
//	    -username user@gmail.com -folders INBOX,Sent -password-stdin
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/hkdb/gmsync/internal/accounts"
	"github.com/hkdb/gmsync/internal/blobstore"
	"github.com/hkdb/gmsync/internal/config"
	"github.com/hkdb/gmsync/internal/models"
	"github.com/hkdb/gmsync/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gmsync-accounts:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] != "add" {
		return fmt.Errorf("usage: gmsync-accounts add -email ... -host ... -username ... -folders ...")
	}

	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	email := fs.String("email", "", "account email, also the primary key")
	host := fs.String("host", "", "IMAP host")
	port := fs.Int("port", 993, "IMAP port")
	username := fs.String("username", "", "IMAP username, defaults to email")
	folders := fs.String("folders", "INBOX", "comma-separated sync folders, in priority order")
	passwordStdin := fs.Bool("password-stdin", false, "read the IMAP password from stdin")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *email == "" || *host == "" {
		return fmt.Errorf("-email and -host are required")
	}
	if *username == "" {
		*username = *email
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	db, err := store.Open(cfg.DataDir + "/gmsync.db")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	st := store.New(db)

	if err := st.UpsertAccount(ctx, models.Account{
		Email:       *email,
		IMAPHost:    *host,
		IMAPPort:    *port,
		Username:    *username,
		Enabled:     true,
		SyncFolders: strings.Split(*folders, ","),
	}); err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}

	if *passwordStdin {
		blobs, err := blobstore.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		accts, err := accounts.New(st, db, cfg.EncryptionKeyBase64, blobs)
		if err != nil {
			return fmt.Errorf("init accounts: %w", err)
		}
		password, err := readLine(os.Stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if err := accts.SetPassword(ctx, *email, password); err != nil {
			return fmt.Errorf("set password: %w", err)
		}
	}

	fmt.Printf("account %s provisioned\n", *email)
	return nil
}

func readLine(f *os.File) (string, error) {
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input")
	}
	return scanner.Text(), nil
}
