package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/stripe-checkout/internal/cart"
	"github.com/fjod/go_cart/stripe-checkout/internal/client"
	"github.com/fjod/go_cart/stripe-checkout/internal/flow"
	"github.com/fjod/go_cart/stripe-checkout/internal/payment"
)

type options struct {
	apiURL     string
	dataDir    string
	successURL string
	cancelURL  string
	timeout    time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shop"
	}
	return filepath.Join(home, ".shop")
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "shop",
		Short:         "Storefront for the checkout API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api", getEnv("SHOP_API_URL", "http://localhost:8080"), "checkout API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", getEnv("SHOP_DATA_DIR", defaultDataDir()), "directory for the local cart")
	rootCmd.PersistentFlags().StringVar(&opts.successURL, "success-url", getEnv("SHOP_SUCCESS_URL", "http://localhost:3000/checkout/success"), "where the customer lands after payment")
	rootCmd.PersistentFlags().StringVar(&opts.cancelURL, "cancel-url", getEnv("SHOP_CANCEL_URL", "http://localhost:3000/"), "where the customer lands after cancelling")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "timeout for each network call")

	rootCmd.AddCommand(productsCmd(opts))
	rootCmd.AddCommand(cartCmd(opts))
	rootCmd.AddCommand(checkoutCmd(opts))
	rootCmd.AddCommand(resumeCmd(opts))
	rootCmd.AddCommand(cancelCmd(opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *options) client() *client.Client {
	return client.New(o.apiURL, o.timeout)
}

func (o *options) loadCart() (*cart.Store, cart.Storage, error) {
	storage, err := cart.NewFileStorage(o.dataDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := cart.Load(storage)
	if err != nil {
		return nil, nil, err
	}
	return store, storage, nil
}

func (o *options) newFlow(store *cart.Store, storage cart.Storage) *flow.Flow {
	return flow.New(flow.Config{
		SuccessURL: o.successURL,
		CancelURL:  o.cancelURL,
		Timeout:    o.timeout,
	}, store, storage, o.client(), payment.NewStripeConfirmer(nil, o.timeout))
}
