package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/stripe-checkout/internal/flow"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
)

func checkoutCmd(opts *options) *cobra.Command {
	var details payment.PaymentDetails

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Pay for the current cart",
		Long: `Creates a payment for the cart and confirms it with the given details.
If the payment method needs external authorization, the command prints the
authorization URL; finish with "shop resume <return-url>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, storage, err := opts.loadCart()
			if err != nil {
				return err
			}
			f := opts.newFlow(store, storage)
			if f.State() == flow.StateAwaitingExternalConfirmation {
				return fmt.Errorf("a checkout is waiting for authorization, run \"shop resume\" or \"shop cancel\" first")
			}

			outcome, err := f.Submit(cmd.Context(), details)
			printOutcome(outcome)
			if outcome.State == flow.StateFailed {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&details.Method, "method", "klarna", "payment method type")
	cmd.Flags().StringVar(&details.PaymentMethodID, "payment-method", "", "an existing payment method id (pm_...)")
	cmd.Flags().StringVar(&details.Name, "name", "", "billing name")
	cmd.Flags().StringVar(&details.Email, "email", "", "billing email")
	cmd.Flags().StringVar(&details.Country, "country", "US", "billing country (ISO 3166-1 alpha-2)")

	return cmd
}

func resumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <return-url>",
		Short: "Finish a checkout after external authorization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, storage, err := opts.loadCart()
			if err != nil {
				return err
			}
			outcome, err := opts.newFlow(store, storage).Resume(cmd.Context(), args[0])
			printOutcome(outcome)
			if outcome.State == flow.StateFailed {
				return nil
			}
			return err
		},
	}
}

func cancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Abandon the current checkout and keep the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, storage, err := opts.loadCart()
			if err != nil {
				return err
			}
			outcome, err := opts.newFlow(store, storage).Cancel()
			if err != nil {
				return err
			}
			printOutcome(outcome)
			return nil
		},
	}
}

func printOutcome(outcome flow.Outcome) {
	switch outcome.State {
	case flow.StateSucceeded:
		fmt.Println("Payment successful! Your cart has been cleared.")
		fmt.Printf("Continue at %s\n", outcome.Destination)
	case flow.StateAwaitingExternalConfirmation:
		fmt.Println("Authorize the payment at:")
		fmt.Printf("  %s\n", outcome.Destination)
		fmt.Println("then run: shop resume <return-url>")
	case flow.StateFailed:
		fmt.Printf("Payment failed: %s\n", outcome.Message)
		fmt.Println("Your cart was kept, run \"shop checkout\" to try again.")
	case flow.StateCancelled:
		fmt.Println("Checkout cancelled, your cart was kept.")
		fmt.Printf("Continue at %s\n", outcome.Destination)
	}
}
