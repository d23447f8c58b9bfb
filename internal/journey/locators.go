package journey

import "github.com/xkilldash9x/shopflow/internal/browser"

// Locators maps every element the purchase journey touches.
type Locators struct {
	LoginLink   browser.Target
	Username    browser.Target
	Password    browser.Target
	LoginButton browser.Target
	Welcome     browser.Target

	// ProductLink builds the catalog link for a product name.
	ProductLink  func(product string) browser.Target
	ProductTitle browser.Target
	AddToCart    browser.Target

	CartLink browser.Target
	CartRows browser.Target

	PlaceOrder browser.Target
	Name       browser.Target
	Country    browser.Target
	City       browser.Target
	Card       browser.Target
	Month      browser.Target
	Year       browser.Target
	Purchase   browser.Target

	ConfirmationTitle browser.Target
	ConfirmOK         browser.Target
}

// DefaultLocators returns the selectors of the demo store.
func DefaultLocators() Locators {
	return Locators{
		LoginLink:   browser.CSS("login link", "#login2"),
		Username:    browser.CSS("username field", "#loginusername"),
		Password:    browser.CSS("password field", "#loginpassword"),
		LoginButton: browser.Role("log in button", "button", "Log in"),
		Welcome:     browser.CSS("welcome banner", "#nameofuser"),

		ProductLink: func(product string) browser.Target {
			return browser.Role("product link "+product, "link", product)
		},
		ProductTitle: browser.CSS("product title", "h2.name"),
		AddToCart:    browser.Role("add to cart button", "link", "Add to cart"),

		CartLink: browser.CSS("cart link", "#cartur"),
		CartRows: browser.CSS("cart rows", "#tbodyid tr"),

		PlaceOrder: browser.Role("place order button", "button", "Place Order"),
		Name:       browser.CSS("name field", "#name"),
		Country:    browser.CSS("country field", "#country"),
		City:       browser.CSS("city field", "#city"),
		Card:       browser.CSS("card field", "#card"),
		Month:      browser.CSS("month field", "#month"),
		Year:       browser.CSS("year field", "#year"),
		Purchase:   browser.Role("purchase button", "button", "Purchase"),

		ConfirmationTitle: browser.CSS("confirmation title", ".sweet-alert h2"),
		ConfirmOK:         browser.Role("confirmation ok button", "button", "OK"),
	}
}
