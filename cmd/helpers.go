package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/walter/stb/internal/client"
	"github.com/walter/stb/internal/localstore"
)

// tableFormat is the value of the persistent --format flag.
var tableFormat = formatValue(client.FormatSTBCSV)

// formatValue constrains --format to the known table formats.
type formatValue string

var _ pflag.Value = (*formatValue)(nil)

func (f *formatValue) String() string { return string(*f) }

func (f *formatValue) Type() string { return "format" }

func (f *formatValue) Set(v string) error {
	if !client.ValidFormat(v) {
		return fmt.Errorf("unknown format %q (want stbcsv, csv or other)", v)
	}
	*f = formatValue(v)
	return nil
}

// envCredentials overrides stored credentials from the environment.
// STB_PASSWORD must be set; STB_USERNAME falls back to the store's
// recorded username when empty.
type envCredentials struct {
	username string
}

func (c envCredentials) Credentials() (string, string, error) {
	pass := os.Getenv("STB_PASSWORD")
	if pass == "" {
		return "", "", errors.New("STB_PASSWORD is not set")
	}
	user := os.Getenv("STB_USERNAME")
	if user == "" {
		user = c.username
	}
	return user, pass, nil
}

// openTable opens the local store at path with the session's format and
// credential overrides applied.
func openTable(path string) (*client.Table, error) {
	store, err := localstore.Open(path)
	if err != nil {
		return nil, err
	}

	opts := client.Options{}
	if os.Getenv("STB_PASSWORD") != "" {
		opts.Credentials = envCredentials{username: store.Repository.Username}
	}

	tbl, err := client.New(store, string(tableFormat), opts)
	if err != nil {
		store.Close()
		return nil, err
	}
	return tbl, nil
}
