package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/walter/stb/internal/api"
	"github.com/walter/stb/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create-table":
		runAdminCreateTable(args[1:])
	case "add-user":
		runAdminAddUser(args[1:])
	case "add-column":
		runAdminAddColumn(args[1:])
	case "list-tables":
		runAdminListTables(args[1:])
	case "list-users":
		runAdminListUsers(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: stb-server admin <command> [flags]

Commands:
  create-table  Create a shared table
  add-user      Register a user for digest auth
  add-column    Insert a CSV column into every row of a table
  list-tables   List the shared tables
  list-users    List the registered users`)
}

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		cfg := api.LoadConfig()
		dbPath = cfg.ServerDBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: open database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runAdminCreateTable(args []string) {
	fs := flag.NewFlagSet("admin create-table", flag.ExitOnError)
	table := fs.String("table", "", "table name")
	format := fs.String("format", serverdb.FormatSTBCSV, "table format: stbcsv, csv or other")
	dbPath := fs.String("db", "", "path to stb.db (default: from STB_SERVER_DB_PATH or ./data/stb.db)")
	fs.Parse(args)

	if *table == "" {
		fmt.Fprintln(os.Stderr, "error: --table is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	if err := store.CreateTable(*table, *format); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created table %s (%s)\n", *table, *format)
}

func runAdminAddUser(args []string) {
	fs := flag.NewFlagSet("admin add-user", flag.ExitOnError)
	username := fs.String("username", "", "username to register")
	realm := fs.String("realm", "", "digest auth realm (default: from STB_REALM or \"shared\")")
	password := fs.String("password", "", "password (omit to be prompted)")
	dbPath := fs.String("db", "", "path to stb.db (default: from STB_SERVER_DB_PATH or ./data/stb.db)")
	fs.Parse(args)

	if *username == "" {
		fmt.Fprintln(os.Stderr, "error: --username is required")
		fs.Usage()
		os.Exit(1)
	}

	effectiveRealm := *realm
	if effectiveRealm == "" {
		effectiveRealm = api.LoadConfig().Realm
	}

	pass := *password
	if pass == "" {
		var err error
		pass, err = promptPassword(*username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	store := openDB(*dbPath)
	defer store.Close()

	if err := store.AddUser(*username, effectiveRealm, pass); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("added user %s (realm %s)\n", *username, effectiveRealm)
}

// promptPassword reads the password twice from the terminal without
// echoing it.
func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", username)
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "repeat password: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("empty password")
	}
	return string(first), nil
}

func runAdminAddColumn(args []string) {
	fs := flag.NewFlagSet("admin add-column", flag.ExitOnError)
	table := fs.String("table", "", "table name")
	after := fs.String("after", "", "existing column the new one follows")
	name := fs.String("name", "", "name of the new column")
	dbPath := fs.String("db", "", "path to stb.db (default: from STB_SERVER_DB_PATH or ./data/stb.db)")
	fs.Parse(args)

	missing := ""
	switch {
	case *table == "":
		missing = "--table"
	case *after == "":
		missing = "--after"
	case *name == "":
		missing = "--name"
	}
	if missing != "" {
		fmt.Fprintf(os.Stderr, "error: %s is required\n", missing)
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	rewritten, err := store.AddColumn(*table, *after, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if rewritten == 0 {
		fmt.Printf("column %s already present in %s\n", *name, *table)
		return
	}
	fmt.Printf("added column %s to %s (%d rows rewritten)\n", *name, *table, rewritten)
	fmt.Println("Remind clients to run the matching \"stb add-column\" before their next sync.")
}

func runAdminListTables(args []string) {
	fs := flag.NewFlagSet("admin list-tables", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to stb.db (default: from STB_SERVER_DB_PATH or ./data/stb.db)")
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	tables, err := store.ListTables()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(tables) == 0 {
		fmt.Println("no tables")
		return
	}
	for _, t := range tables {
		fmt.Printf("%-32s %-8s %s\n", t.Name, t.Format, t.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func runAdminListUsers(args []string) {
	fs := flag.NewFlagSet("admin list-users", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to stb.db (default: from STB_SERVER_DB_PATH or ./data/stb.db)")
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	users, err := store.ListUsers()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(users) == 0 {
		fmt.Println("no users")
		return
	}
	fmt.Println(strings.Join(users, "\n"))
}
