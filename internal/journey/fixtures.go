package journey

import "github.com/xkilldash9x/shopflow/internal/config"

// Credentials are the login inputs of the authenticate step.
type Credentials struct {
	Username string
	Password string
}

// CheckoutDetails is the order form payload. The store decides whether the values are acceptable.
type CheckoutDetails struct {
	Name    string
	Country string
	City    string
	Card    string
	Month   string
	Year    string
}

// Fixtures bundles the fixed inputs and expectations of one purchase run.
type Fixtures struct {
	Credentials       Credentials
	Product           string
	MinProducts       int
	AddedMessage      string
	Checkout          CheckoutDetails
	ConfirmationTitle string
}

// FixturesFromConfig copies the configured fixtures.
func FixturesFromConfig(cfg config.FixturesConfig) Fixtures {
	return Fixtures{
		Credentials:  Credentials{Username: cfg.Username, Password: cfg.Password},
		Product:      cfg.Product,
		MinProducts:  cfg.MinProducts,
		AddedMessage: cfg.AddedMessage,
		Checkout: CheckoutDetails{
			Name:    cfg.Checkout.Name,
			Country: cfg.Checkout.Country,
			City:    cfg.Checkout.City,
			Card:    cfg.Checkout.Card,
			Month:   cfg.Checkout.Month,
			Year:    cfg.Checkout.Year,
		},
		ConfirmationTitle: cfg.ConfirmationTitle,
	}
}
