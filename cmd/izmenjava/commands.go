package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/erazemk/izmenjava/internal/accounts"
	"github.com/erazemk/izmenjava/internal/auth"
	"github.com/erazemk/izmenjava/internal/model"
	"github.com/erazemk/izmenjava/internal/store"
)

// SessionFile is the name of the session token file inside the data directory.
const SessionFile = "session"

// usageError marks a bad invocation of a command.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

var errWrongRole = errors.New("command not available for your role")

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"signup":     cmdSignup,
	"login":      cmdLogin,
	"logout":     cmdLogout,
	"whoami":     cmdWhoami,
	"items":      cmdItems,
	"categories": cmdCategories,
	"search":     cmdSearch,
	"donate":     cmdDonate,
	"mine":       cmdMine,
	"inbox":      cmdInbox,
	"decide":     cmdDecide,
	"request":    cmdRequest,
	"requests":   cmdRequests,
	"received":   cmdReceived,
	"recover":    cmdRecover,
}

// app holds everything a command needs.
type app struct {
	dir      string
	store    *store.Store
	accounts *accounts.Directory
	secret   string
	out      io.Writer
	errOut   io.Writer
}

func openApp(ctx context.Context, dir string, stdout, stderr io.Writer) (*app, error) {
	s, err := store.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	dirAccounts, err := accounts.Open(dir)
	if err != nil {
		return nil, err
	}
	secret, err := dirAccounts.SessionSecret(ctx)
	if err != nil {
		dirAccounts.Close()
		return nil, err
	}
	return &app{
		dir:      dir,
		store:    s,
		accounts: dirAccounts,
		secret:   secret,
		out:      stdout,
		errOut:   stderr,
	}, nil
}

func (a *app) close() {
	a.accounts.Close()
}

func (a *app) sessionPath() string {
	return filepath.Join(a.dir, SessionFile)
}

// session returns the logged in account, optionally requiring a role.
func (a *app) session(role string) (*auth.Claims, error) {
	claims, err := auth.LoadSession(a.sessionPath(), a.secret)
	if err != nil {
		return nil, err
	}
	if role != "" && claims.Role != role {
		return nil, fmt.Errorf("%w: %s is a %s", errWrongRole, claims.Username, claims.Role)
	}
	return claims, nil
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parse parses command flags and rejects positional arguments.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return usageError{msg: err.Error()}
	}
	if fs.NArg() > 0 {
		return usageError{msg: "unexpected argument: " + fs.Arg(0)}
	}
	return nil
}

func (a *app) table(header string, rows func(w io.Writer)) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := a.flags("signup")
	var username, password, role string
	fs.StringVar(&username, "u", "", "username")
	fs.StringVar(&password, "p", "", "password (generated if empty)")
	fs.StringVar(&role, "r", "", "role: donor or recipient")
	if err := parse(fs, args); err != nil {
		return err
	}
	if username == "" || role == "" {
		return usageError{msg: "-u and -r are required"}
	}

	generated := password == ""
	if generated {
		var err error
		if password, err = generatePassword(16); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}

	user, err := a.accounts.Register(ctx, username, password, role)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Account created: %s (%s)\n", user.Username, user.Role)
	if generated {
		fmt.Fprintf(a.out, "  Password: %s\n", password)
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Save this password. It cannot be recovered.")
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	var username, password string
	fs.StringVar(&username, "u", "", "username")
	fs.StringVar(&password, "p", "", "password")
	if err := parse(fs, args); err != nil {
		return err
	}
	if username == "" || password == "" {
		return usageError{msg: "-u and -p are required"}
	}

	user, err := a.accounts.Authenticate(ctx, username, password)
	if err != nil {
		return err
	}
	token, err := auth.GenerateToken(a.secret, user.Username, user.Role)
	if err != nil {
		return err
	}
	if err := auth.SaveSession(a.sessionPath(), token); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func cmdLogout(_ context.Context, a *app, args []string) error {
	if err := parse(a.flags("logout"), args); err != nil {
		return err
	}
	if err := auth.ClearSession(a.sessionPath()); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("whoami"), args); err != nil {
		return err
	}
	claims, err := a.session("")
	if err != nil {
		return err
	}
	user, err := a.accounts.User(ctx, claims.Username)
	if err != nil {
		return err
	}
	if user == nil {
		return accounts.ErrInvalidCredentials
	}
	fmt.Fprintf(a.out, "%s (%s), joined %s\n", user.Username, user.Role, humanize.Time(user.CreatedAt))
	return nil
}

func cmdItems(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("items"), args); err != nil {
		return err
	}
	items, err := a.store.Items.ListAvailable(ctx)
	if err != nil {
		return err
	}
	return a.printItems(items)
}

func cmdCategories(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("categories"), args); err != nil {
		return err
	}
	categories, err := a.store.Items.DistinctCategories(ctx, nil)
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		fmt.Fprintln(a.out, "No categories")
		return nil
	}
	for _, c := range categories {
		fmt.Fprintln(a.out, c)
	}
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	fs := a.flags("search")
	var category string
	fs.StringVar(&category, "c", "", "category")
	if err := parse(fs, args); err != nil {
		return err
	}
	if category == "" {
		return usageError{msg: "-c is required"}
	}

	items, err := a.store.Items.FindByCategory(ctx, category)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintf(a.out, "No available items in %q\n", category)
		return nil
	}
	return a.printItems(items)
}

func (a *app) printItems(items []model.Item) error {
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No items")
		return nil
	}
	return a.table("ID\tCATEGORY\tDESCRIPTION\tCONDITION\tDONOR", func(w io.Writer) {
		for _, it := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Category, it.Description, it.Condition, it.Donor)
		}
	})
}

func cmdDonate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("donate")
	var category, description, condition string
	fs.StringVar(&category, "c", "", "category")
	fs.StringVar(&description, "desc", "", "description")
	fs.StringVar(&condition, "cond", model.ConditionGood, "condition")
	if err := parse(fs, args); err != nil {
		return err
	}
	if category == "" || description == "" {
		return usageError{msg: "-c and -desc are required"}
	}

	claims, err := a.session(model.RoleDonor)
	if err != nil {
		return err
	}
	item, err := a.store.Items.AddItem(ctx, claims.Username, category, description, condition)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Listed item %d\n", item.ID)
	return nil
}

func cmdMine(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("mine"), args); err != nil {
		return err
	}
	claims, err := a.session(model.RoleDonor)
	if err != nil {
		return err
	}

	items, err := a.store.Items.ListByDonor(ctx, claims.Username)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No items")
	} else {
		err = a.table("ID\tCATEGORY\tDESCRIPTION\tCONDITION\tSTATUS", func(w io.Writer) {
			for _, it := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", it.ID, it.Category, it.Description, it.Condition, it.Status)
			}
		})
		if err != nil {
			return err
		}
	}

	n, err := a.store.Requests.CountPending(ctx, claims.Username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Pending requests: %d\n", n)
	return nil
}

func cmdInbox(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("inbox"), args); err != nil {
		return err
	}
	claims, err := a.session(model.RoleDonor)
	if err != nil {
		return err
	}

	pending, err := a.store.Requests.PendingForDonor(ctx, claims.Username)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(a.out, "No pending requests")
		return nil
	}

	descriptions := make(map[int64]string)
	for _, r := range pending {
		if _, ok := descriptions[r.ItemID]; ok {
			continue
		}
		it, err := a.store.Items.Item(ctx, r.ItemID)
		if err != nil {
			return err
		}
		if it != nil {
			descriptions[r.ItemID] = it.Description
		}
	}

	return a.table("REQUEST\tITEM\tDESCRIPTION\tRECIPIENT", func(w io.Writer) {
		for _, r := range pending {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", r.ID, r.ItemID, descriptions[r.ItemID], r.Recipient)
		}
	})
}

func cmdDecide(ctx context.Context, a *app, args []string) error {
	fs := a.flags("decide")
	var id int64
	var approve, reject bool
	fs.Int64Var(&id, "id", 0, "request id")
	fs.BoolVar(&approve, "approve", false, "approve the request")
	fs.BoolVar(&reject, "reject", false, "reject the request")
	if err := parse(fs, args); err != nil {
		return err
	}
	if id <= 0 {
		return usageError{msg: "-id is required"}
	}
	if approve == reject {
		return usageError{msg: "exactly one of -approve and -reject is required"}
	}

	claims, err := a.session(model.RoleDonor)
	if err != nil {
		return err
	}

	decision := model.DecisionReject
	if approve {
		decision = model.DecisionApprove
	}
	req, err := a.store.Requests.ResolveRequestAs(ctx, claims.Username, id, decision)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Request %d %s\n", req.ID, req.Status)
	return nil
}

func cmdRequest(ctx context.Context, a *app, args []string) error {
	fs := a.flags("request")
	var itemID int64
	fs.Int64Var(&itemID, "item", 0, "item id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if itemID <= 0 {
		return usageError{msg: "-item is required"}
	}

	claims, err := a.session(model.RoleRecipient)
	if err != nil {
		return err
	}
	req, err := a.store.Requests.SubmitRequest(ctx, itemID, claims.Username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Requested item %d (request %d)\n", req.ItemID, req.ID)
	return nil
}

func cmdRequests(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("requests"), args); err != nil {
		return err
	}
	claims, err := a.session(model.RoleRecipient)
	if err != nil {
		return err
	}

	reqs, err := a.store.Requests.RequestsByRecipient(ctx, claims.Username)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		fmt.Fprintln(a.out, "No requests")
		return nil
	}
	return a.table("REQUEST\tITEM\tSTATUS", func(w io.Writer) {
		for _, r := range reqs {
			fmt.Fprintf(w, "%d\t%d\t%s\n", r.ID, r.ItemID, r.Status)
		}
	})
}

func cmdReceived(ctx context.Context, a *app, args []string) error {
	if err := parse(a.flags("received"), args); err != nil {
		return err
	}
	claims, err := a.session(model.RoleRecipient)
	if err != nil {
		return err
	}

	donations, err := a.store.Requests.ApprovedForRecipient(ctx, claims.Username)
	if err != nil {
		return err
	}
	if len(donations) == 0 {
		fmt.Fprintln(a.out, "No items received")
		return nil
	}
	return a.table("ITEM\tCATEGORY\tDESCRIPTION\tCONDITION\tDONOR", func(w io.Writer) {
		for _, d := range donations {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.Item.ID, d.Item.Category, d.Item.Description, d.Item.Condition, d.Item.Donor)
		}
	})
}

// cmdRecover reports the approvals finished while opening the store.
func cmdRecover(_ context.Context, a *app, args []string) error {
	if err := parse(a.flags("recover"), args); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Recovered %s\n", english.Plural(a.store.Recovered, "interrupted approval", ""))
	return nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
