package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/sheikh-saqib/card-balance-ledger/internal/cards"
	"github.com/sheikh-saqib/card-balance-ledger/internal/config"
	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	"github.com/sheikh-saqib/card-balance-ledger/internal/events"
	"github.com/sheikh-saqib/card-balance-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/ledger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/logger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage"
)

// openService builds a cards.Service on the configured store. The returned
// func releases the store and the publisher.
func openService(ctx context.Context) (*cards.Service, func(), error) {
	cfg := config.LoadConfig()
	// stdout carries command output
	logger.L = logger.New(os.Stderr, cfg.LogLevel)

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	var publisher interfaces.EventPublisher = events.LogPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers)
	}
	service := cards.NewService(store, publisher, cards.Options{
		Topic:         cfg.KafkaTopic,
		CardCacheTTL:  cfg.CardCacheTTL,
		ExtendToToday: cfg.ExtendToToday,
		MaxSpanDays:   cfg.MaxSpanDays,
	})
	return service, func() {
		publisher.Close()
		store.Close()
	}, nil
}

// run opens the service, hands it to fn and maps the outcome to an exit status.
func run(ctx context.Context, fn func(*cards.Service) error) subcommands.ExitStatus {
	service, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if err := fn(service); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- addUserCmd ---

type addUserCmd struct {
	name  string
	email string
}

func (*addUserCmd) Name() string     { return "add-user" }
func (*addUserCmd) Synopsis() string { return "registers a user and prints its id" }
func (*addUserCmd) Usage() string {
	return `add-user -name <name> -email <email>
`
}
func (c *addUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "user name")
	f.StringVar(&c.email, "email", "", "user email")
}

func (c *addUserCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" || c.email == "" {
		fmt.Fprintln(os.Stderr, "Error: -name and -email flags are required.")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(s *cards.Service) error {
		user, err := s.CreateUser(ctx, c.name, c.email)
		if err != nil {
			return err
		}
		fmt.Println(user.ID)
		return nil
	})
}

// --- addCardCmd ---

type addCardCmd struct {
	user   string
	bank   string
	number string
}

func (*addCardCmd) Name() string     { return "add-card" }
func (*addCardCmd) Synopsis() string { return "associates a credit card with a user" }
func (*addCardCmd) Usage() string {
	return `add-card -user <user id> -bank <issuance bank> -number <card number>
`
}
func (c *addCardCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "id of the card holder")
	f.StringVar(&c.bank, "bank", "", "issuance bank")
	f.StringVar(&c.number, "number", "", "credit card number")
}

func (c *addCardCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" || c.number == "" {
		fmt.Fprintln(os.Stderr, "Error: -user and -number flags are required.")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(s *cards.Service) error {
		card, err := s.AddCard(ctx, c.user, c.bank, c.number)
		if err != nil {
			return err
		}
		fmt.Println(card.ID)
		return nil
	})
}

// --- applyCmd ---

type applyCmd struct {
	file string
}

func (*applyCmd) Name() string     { return "apply" }
func (*applyCmd) Synopsis() string { return "applies a batch of balance facts" }
func (*applyCmd) Usage() string {
	return `apply -f <facts.json>

Reads a JSON array of {"creditCardNumber", "balanceDate", "balanceAmount"}
objects and reconciles them into the card ledgers. Use -f - to read stdin.
`
}
func (c *applyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "-", "file holding the facts, - for stdin")
}

func (c *applyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	facts, err := readFacts(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading facts: %v\n", err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(s *cards.Service) error {
		updates, err := s.UpdateBalances(ctx, facts)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CARD\tDATE\tBALANCE\tDELTA\tINSERTED\tFILLED\tPROPAGATED")
		for _, u := range updates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%d\t%d\n",
				u.CardID, u.Date, u.Balance, u.Delta, u.Inserted, u.Filled, u.Propagated)
		}
		return w.Flush()
	})
}

func readFacts(file string) ([]models.BalanceFact, error) {
	var r io.Reader = os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeFacts(r)
}

func decodeFacts(r io.Reader) ([]models.BalanceFact, error) {
	var facts []models.BalanceFact
	if err := json.NewDecoder(r).Decode(&facts); err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, errors.New("no balance facts")
	}
	return facts, nil
}

// --- historyCmd ---

type historyCmd struct {
	card string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "prints every daily balance of a card" }
func (*historyCmd) Usage() string {
	return `history -card <card number>
`
}
func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.card, "card", "", "credit card number")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.card == "" {
		fmt.Fprintln(os.Stderr, "Error: -card flag is required.")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(s *cards.Service) error {
		entries, err := s.History(ctx, c.card)
		if err != nil {
			return err
		}
		return printEntries(os.Stdout, entries)
	})
}

func printEntries(out io.Writer, entries []models.BalanceEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t\n", e.Date, e.Balance.StringFixed(2))
	}
	return w.Flush()
}

// --- balanceCmd ---

type balanceCmd struct {
	card    string
	on      string
	closest bool
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "prints the balance of a card on a day" }
func (*balanceCmd) Usage() string {
	return `balance -card <card number> [-d YYYY-MM-DD] [-closest]

Without -closest the day must be in the ledger. With it the earliest
balance on or after the day is printed.
`
}
func (c *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.card, "card", "", "credit card number")
	f.StringVar(&c.on, "d", date.Today().String(), "day of the balance")
	f.BoolVar(&c.closest, "closest", false, "fall back to the next recorded day")
}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.card == "" {
		fmt.Fprintln(os.Stderr, "Error: -card flag is required.")
		return subcommands.ExitUsageError
	}
	on, err := date.Parse(c.on)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid date %q: %v\n", c.on, err)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(s *cards.Service) error {
		if c.closest {
			entry, err := s.ClosestOnOrAfter(ctx, c.card, on)
			if err != nil {
				return err
			}
			return printEntries(os.Stdout, []models.BalanceEntry{entry})
		}
		balance, err := s.BalanceOn(ctx, c.card, on)
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("%w (try -closest)", err)
		}
		if err != nil {
			return err
		}
		fmt.Println(balance.StringFixed(2))
		return nil
	})
}
