package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/subsy/fx/infra/initializer"
	"github.com/subsy/fx/pkg/app"
	"github.com/subsy/fx/pkg/config"
	"github.com/subsy/fx/pkg/exchange/core"
	"github.com/subsy/fx/pkg/money"
)

const usage = `Usage: fx <command> [arguments]
Commands:
  rates <base> [target...]            show exchange rates
  convert <amount> <from> <to>        convert a single amount
  bulk <to> <currency=amount>...      sum amounts in one currency`

var errUsage = errors.New("invalid arguments")

var (
	okColor       = color.New(color.FgGreen, color.Bold)
	degradedColor = color.New(color.FgYellow, color.Bold)
	labelColor    = color.New(color.FgCyan)
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return
	}
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Println("Failed to load configuration:", err)
		return 1
	}
	cfg.Log.Level = int(log.WarnLevel)

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		fmt.Println("Failed to initialize dependencies:", err)
		return 1
	}
	a := app.New(deps, cfg)
	defer a.Close() //nolint: errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, a, args, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usage)
		}
		color.New(color.FgRed).Println("Error:", err) //nolint: errcheck
		return 1
	}
	return 0
}

func run(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	switch args[0] {
	case "rates":
		return rates(ctx, a, args[1:], w)
	case "convert":
		return convert(ctx, a, args[1:], w)
	case "bulk":
		return bulk(ctx, a, args[1:], w)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func rates(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	if len(args) < 1 {
		return errUsage
	}
	base, err := money.ParseCode(args[0])
	if err != nil {
		return err
	}
	targets, err := money.ParseCodes(args[1:])
	if err != nil {
		return err
	}
	snap, err := a.RatesService.GetRates(ctx, base, targets)
	if err != nil {
		return err
	}

	labelColor.Fprintf(w, "Rates for 1 %s", snap.Base) //nolint: errcheck
	fmt.Fprintf(w, " (%s, %s)\n", snap.Source, snap.Timestamp.Format("2006-01-02 15:04:05"))
	codes := make([]money.Code, 0, len(snap.Rates))
	for c := range snap.Rates {
		codes = append(codes, c)
	}
	for _, c := range money.SortedUnique(codes) {
		fmt.Fprintf(w, "  %s  %s\n", c, strconv.FormatFloat(snap.Rates[c], 'f', -1, 64))
	}
	return nil
}

func convert(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	if len(args) != 3 {
		return errUsage
	}
	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%w: %q", core.ErrInvalidAmount, args[0])
	}
	from, err := money.ParseCode(args[1])
	if err != nil {
		return err
	}
	to, err := money.ParseCode(args[2])
	if err != nil {
		return err
	}

	res, err := a.ConversionService.Convert(ctx, amount, from, to)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%.2f %s = ", res.OriginalAmount, res.OriginalCurrency)
	status(w, res.Degraded, "%.2f %s", res.Amount, res.Currency)
	fmt.Fprintf(w, " [%s]\n", res.Tier)
	return nil
}

func bulk(ctx context.Context, a *app.App, args []string, w io.Writer) error {
	if len(args) < 2 {
		return errUsage
	}
	to, err := money.ParseCode(args[0])
	if err != nil {
		return err
	}
	amounts := make(core.Amounts, 0, len(args)-1)
	for _, arg := range args[1:] {
		code, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("%w: expected currency=amount, got %q", errUsage, arg)
		}
		c, err := money.ParseCode(code)
		if err != nil {
			return err
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", core.ErrInvalidAmount, value)
		}
		amounts = append(amounts, core.Amount{Currency: c, Value: v})
	}

	res, err := a.ConversionService.ConvertBulk(ctx, amounts, to)
	if err != nil {
		return err
	}
	fmt.Fprint(w, "Total: ")
	status(w, res.Degraded, "%.2f %s", res.Total, res.Currency)
	fmt.Fprintf(w, " [%s, %d converted]\n", res.Tier, res.ConversionCount)
	if len(res.Unconverted) > 0 {
		degradedColor.Fprintf(w, "Unconverted: %s\n", money.JoinCodes(res.Unconverted, ", ")) //nolint: errcheck
	}
	return nil
}

// status prints the value green, or yellow with a marker when degraded.
func status(w io.Writer, degraded bool, format string, args ...any) {
	if degraded {
		degradedColor.Fprintf(w, format+" (degraded)", args...) //nolint: errcheck
		return
	}
	okColor.Fprintf(w, format, args...) //nolint: errcheck
}
