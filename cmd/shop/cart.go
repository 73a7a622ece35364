package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fjod/go_cart/stripe-checkout/internal/cart"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
)

func productsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the products for sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := opts.client().GetProducts(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPRICE\tDESCRIPTION")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, domain.FormatPrice(p.Price, p.Currency), p.Description)
			}
			return w.Flush()
		},
	}
}

func cartCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the local cart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the cart and its total",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.loadCart()
			if err != nil {
				return err
			}
			return printCart(store)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>",
		Short: "Add one unit of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.loadCart()
			if err != nil {
				return err
			}
			products, err := opts.client().GetProducts(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Add(args[0], products); err != nil {
				return err
			}
			return printCart(store)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.loadCart()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			return printCart(store)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a product already in the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			store, _, err := opts.loadCart()
			if err != nil {
				return err
			}
			if err := store.SetQuantity(args[0], quantity); err != nil {
				return err
			}
			return printCart(store)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := opts.loadCart()
			if err != nil {
				return err
			}
			return store.Clear()
		},
	})

	return cmd
}

func printCart(store *cart.Store) error {
	items := store.Snapshot()
	if len(items) == 0 {
		fmt.Println("Your cart is empty.")
		return nil
	}

	currency := items[0].Product.Currency
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			item.Product.ID,
			item.Product.Name,
			item.Quantity,
			domain.FormatPrice(item.Product.Price, item.Product.Currency),
			domain.FormatPrice(item.Subtotal(), item.Product.Currency))
	}
	fmt.Fprintf(w, "\t\t\tTOTAL\t%s\n", domain.FormatPrice(store.Total(), currency))
	return w.Flush()
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", raw)
	}
	return quantity, nil
}
