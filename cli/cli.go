package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/tushevents/gifting-tools/gifting"
	giftinghttp "github.com/tushevents/gifting-tools/gifting/http"
	"github.com/tushevents/gifting-tools/gifting/paystack"
)

// Environment provides an abstraction around the execution environment
type Environment struct {
	Stderr io.Writer
	Stdout io.Writer
	Stdin  io.Reader
}

// notifier is the terminal rendition of the site's toast layer.
type notifier struct {
	out io.Writer
	err io.Writer
}

func (n notifier) Success(msg string) { fmt.Fprintf(n.out, "✔ %s\n", msg) }
func (n notifier) Error(msg string)   { fmt.Fprintf(n.err, "✖ %s\n", msg) }
func (n notifier) Info(msg string)    { fmt.Fprintf(n.out, "• %s\n", msg) }

type RsvpCmd struct {
	Name         string `required:"" help:"your full name."`
	Phone        string `required:"" help:"a phone number we can reach you on."`
	Representing string `default:"bride" enum:"bride,groom,both" help:"whose side you're attending for."`
	Extra        int    `default:"0" help:"number of extra guests you're bringing."`
}

func (cmd *RsvpCmd) Run(env *Environment, client giftinghttp.Client) error {
	confirmation, err := client.SaveGuest(context.Background(), gifting.Guest{
		Name:         cmd.Name,
		Phone:        cmd.Phone,
		Representing: cmd.Representing,
		Extra:        fmt.Sprintf("%d", cmd.Extra),
	})
	if err != nil {
		return fmt.Errorf("saving your seat: %w", err)
	}

	fmt.Fprintf(env.Stdout, "Your seat is saved, %v!\n", cmd.Name)
	fmt.Fprintf(env.Stdout, "Invitation code: %v\n", confirmation.InvitationCode)
	fmt.Fprintf(env.Stdout, "Fetch your access card with: gifting card --code %v\n", confirmation.InvitationCode)

	return nil
}

type GiftsCmd struct{}

func (cmd *GiftsCmd) Run(env *Environment, client giftinghttp.Client) error {
	catalog := gifting.NewCatalog(client)

	if err := catalog.Refresh(context.Background()); err != nil {
		return err
	}

	gifts := catalog.Gifts()

	if len(gifts) == 0 {
		fmt.Fprintln(env.Stdout, "No gifts available at the moment.")
		return nil
	}

	for _, gift := range gifts {
		status := fmt.Sprintf("%.0f%% funded", gift.Progress)
		if gift.IsCompleted {
			status = "fully funded"
		}

		fmt.Fprintf(env.Stdout, "%v  %v — %v of %v (%v)\n",
			gift.ID, gift.Title, gifting.FormatMinor(gift.RaisedAmount), gifting.FormatMinor(gift.Amount), status)

		if gift.MinPerGuest != nil {
			fmt.Fprintf(env.Stdout, "    minimum per guest: %v\n", gifting.FormatMinor(*gift.MinPerGuest))
		}
	}

	return nil
}

type ContributeCmd struct {
	GiftID       string `required:"" help:"the id of the gift to contribute toward."`
	Name         string `required:"" help:"your full name."`
	Phone        string `required:"" help:"a phone number we can reach you on."`
	Email        string `required:"" help:"the email address your payment receipt goes to."`
	Representing string `required:"" help:"one of: Bride's Family, Groom's Family, Both."`
	Amount       int64  `help:"contribution amount in naira; defaults to the gift's minimum."`
}

func (cmd *ContributeCmd) Run(env *Environment, client giftinghttp.Client, receipts gifting.ReceiptStore) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := gifting.NewCatalog(client)
	if err := catalog.Refresh(ctx); err != nil {
		return err
	}

	gift, ok := catalog.Gift(cmd.GiftID)
	if !ok {
		return fmt.Errorf("no gift with id %v", cmd.GiftID)
	}

	checkout, err := paystack.NewCheckout()
	if err != nil {
		return err
	}
	checkout.Announce = func(url string) {
		fmt.Fprintf(env.Stdout, "Complete your payment in the browser:\n  %v\n", url)
	}

	workflow := gifting.NewWorkflow(catalog, client, checkout, notifier{out: env.Stdout, err: env.Stderr},
		gifting.WithReceiptStore(receipts),
		gifting.WithPublicKey(os.Getenv("PAYSTACK_PUBLIC_KEY")),
	)

	if err := workflow.Select(gift); err != nil {
		return err
	}

	form := workflow.Form()
	form.Name = cmd.Name
	form.Phone = cmd.Phone
	form.Email = cmd.Email
	form.Representing = cmd.Representing
	if cmd.Amount > 0 {
		form.Amount = cmd.Amount
	}

	if err := workflow.Submit(ctx, form); err != nil {
		return err
	}

	if err := workflow.AwaitPayment(ctx); err != nil {
		return err
	}

	if workflow.State() == gifting.StateSettled {
		fmt.Fprintf(env.Stdout, "Transaction number: %v\n", workflow.TransactionNo())
	}

	return nil
}

type CardCmd struct {
	Code string `required:"" help:"your invitation code."`
	Out  string `help:"where to write the card image; defaults to the server's filename."`
}

func (cmd *CardCmd) Run(env *Environment, client giftinghttp.Client) error {
	ctx := context.Background()

	card, err := client.GenerateAccessCard(ctx, cmd.Code)
	if err != nil {
		return fmt.Errorf("generating access card: %w", err)
	}

	out := cmd.Out
	if out == "" {
		out = card.Filename
	}

	if err := os.WriteFile(out, card.Image, 0o644); err != nil {
		return fmt.Errorf("writing %v: %w", out, err)
	}

	fmt.Fprintf(env.Stdout, "Invitation card written to %v\n", filepath.Clean(out))

	if guest, err := client.FindGuestByCode(ctx, cmd.Code); err == nil && guest.Name != "" {
		fmt.Fprintf(env.Stdout, "See you there, %v!\n", guest.Name)
	}

	return nil
}

type ReceiptsCmd struct{}

func (cmd *ReceiptsCmd) Run(env *Environment, receipts gifting.ReceiptStore) error {
	all, err := receipts.ListReceipts(context.Background())
	if err != nil {
		return err
	}

	if len(all) == 0 {
		fmt.Fprintln(env.Stdout, "No contributions recorded yet.")
		return nil
	}

	for _, r := range all {
		fmt.Fprintf(env.Stdout, "%v  %v  %v → %v (%v)\n",
			r.CreatedAt.Format(time.DateTime), r.TransactionNo, r.Name, r.GiftTitle, gifting.FormatMinor(r.AmountMinor))
	}

	return nil
}

type ServeCmd struct{}

func (cmd *ServeCmd) Run(env *Environment, client giftinghttp.Client, receipts gifting.ReceiptStore) error {
	r := gin.Default()

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		api.GET("/registry/overview", giftinghttp.RegistryOverviewHandler(client, receipts))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %s\n", err)
		}
	}()
	log.Printf("Server running on :%v\n", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %s", err)
	}

	log.Println("Server exited gracefully")

	return nil
}

type CLI struct {
	Rsvp       RsvpCmd       `cmd:"" help:"Saves your seat and hands back an invitation code."`
	Gifts      GiftsCmd      `cmd:"" help:"Lists the gift registry with funding progress."`
	Contribute ContributeCmd `cmd:"" help:"Contributes toward a gift and walks the payment through to confirmation."`
	Card       CardCmd       `cmd:"" help:"Downloads the invitation card for an invitation code."`
	Receipts   ReceiptsCmd   `cmd:"" help:"Lists contributions recorded on this machine."`
	Serve      ServeCmd      `cmd:"" help:"Serves the registry overview API."`
}

func Run(env Environment) int {
	app := CLI{}

	client, err := giftinghttp.NewClient()
	if err != nil {
		panic(err.Error())
	}

	receiptStore, err := gifting.NewReceiptStore()
	if err != nil {
		panic(err.Error())
	}

	cntx := kong.Parse(&app,
		kong.Description("wedding registry utils"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cntx.BindTo(client, (*giftinghttp.Client)(nil))
	cntx.BindTo(receiptStore, (*gifting.ReceiptStore)(nil))

	err = cntx.Run(&env)
	cntx.FatalIfErrorf(err)

	return 0
}
