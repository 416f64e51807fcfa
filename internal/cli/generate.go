package cli

import (
	"github.com/spf13/cobra"

	"ecomdw/internal/datagen"
)

var (
	generateCustomers int
	generateProducts  int
	generateOrders    int
	generateSeed      uint64
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a sample source CSV snapshot",
	Long: `Generate a synthetic e-commerce snapshot as CSV files in the data
directory: customers.csv, products.csv, orders.csv, and order_items.csv.
A fixed seed makes the snapshot reproducible.

Example:
  ecomdw generate --customers 5000 --products 500 --orders 20000 --seed 42`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().IntVar(&generateCustomers, "customers", 0,
		"number of customers to generate")
	generateCmd.Flags().IntVar(&generateProducts, "products", 0,
		"number of products to generate")
	generateCmd.Flags().IntVar(&generateOrders, "orders", 0,
		"number of orders to generate")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0,
		"random seed (0 = non-deterministic)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if generateCustomers > 0 {
		cfg.Generate.Customers = generateCustomers
	}
	if generateProducts > 0 {
		cfg.Generate.Products = generateProducts
	}
	if generateOrders > 0 {
		cfg.Generate.Orders = generateOrders
	}
	if cmd.Flags().Changed("seed") {
		cfg.Generate.Seed = generateSeed
	}

	if err := cfg.ValidateGenerate(); err != nil {
		return err
	}

	gen := datagen.NewGenerator(datagen.Config{
		DataDir:   cfg.DataDir,
		Customers: cfg.Generate.Customers,
		Products:  cfg.Generate.Products,
		Orders:    cfg.Generate.Orders,
		Seed:      cfg.Generate.Seed,
	})
	return gen.Generate()
}
