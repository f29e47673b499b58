// Command reflekt is a CLI client for the Reflekt journal service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/reflekt/internal/client"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() (string, error) {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "reflekt"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "reflekt"), nil
}

func tokenPath() (string, error) {
	dir, err := cfgDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "token.json"), nil
}

func saveToken(tok string, exp time.Time) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(tokenFile{AccessToken: tok, ExpiresAt: exp}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, b, 0o600)
}

func loadToken() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", errors.New("not logged in (run: reflekt login)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("session expired (run: reflekt login)")
	}
	return tf.AccessToken, nil
}

func removeToken() error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ---- global options ----

type options struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	verbose   bool
	timeout   time.Duration
}

func (o *options) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// dial connects; authed calls attach the stored bearer token.
func (o *options) dial(authed bool) (*client.Client, error) {
	co := client.Options{Addr: o.addr, CAFile: o.caPath, Insecure: o.insecure, Plaintext: o.plaintext}
	if authed {
		tok, err := loadToken()
		if err != nil {
			return nil, err
		}
		co.Token = tok
	}
	return client.Dial(co)
}

func (o *options) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "reflekt",
		Short:         "A private journal in your terminal",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&opts.addr, "addr", "localhost:8443", "server address")
	pf.StringVar(&opts.caPath, "ca", "", "CA certificate (PEM)")
	pf.BoolVar(&opts.insecure, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&opts.plaintext, "plaintext", false, "connect without TLS (local dev)")
	pf.BoolVar(&opts.verbose, "verbose", false, "log diagnostics to stderr")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "per-command timeout")

	addRegister(root, opts)
	addLogin(root, opts)
	addLogout(root)
	addToday(root, opts)
	addShow(root, opts)
	addWrite(root, opts)
	addDelete(root, opts)
	addList(root, opts)
	addSidebar(root, opts)
	addImport(root, opts)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
