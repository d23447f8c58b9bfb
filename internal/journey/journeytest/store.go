// Package journeytest simulates the demo store on top of browsertest pages so
// the purchase journey can run without a browser.
package journeytest

import (
	"context"
	"sync"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/shopflow/internal/browser"
	"github.com/xkilldash9x/shopflow/internal/browser/browsertest"
	"github.com/xkilldash9x/shopflow/internal/journey"
)

// CatalogURL is the listing endpoint the simulated home page calls.
const CatalogURL = "https://api.demoblaze.com/entries"

// DefaultProducts is the simulated catalog.
var DefaultProducts = []string{
	"Samsung galaxy s6",
	"Nokia lumia 1520",
	"Nexus 6",
	"Samsung galaxy s7",
	"Iphone 6 32gb",
	"Sony xperia z5",
	"HTC One M9",
	"Sony vaio i5",
	"Sony vaio i7",
}

// Order is a submitted checkout form.
type Order struct {
	Items   []string
	Details journey.CheckoutDetails
}

// Store is a scripted demo store. Adjust the exported fields before the
// first page is created to make the store misbehave.
type Store struct {
	Username string
	Password string
	Products []string

	// CatalogStatus, CatalogContentType and CatalogBody shape the listing
	// response. An empty body is generated from Products.
	CatalogStatus      int
	CatalogContentType string
	CatalogBody        string

	AddedMessage string
	// AddedDialogDelay raises the add-to-cart dialog from another goroutine after the delay.
	AddedDialogDelay    time.Duration
	SuppressAddedDialog bool
	// DuplicateCartRows makes the cart render every line twice.
	DuplicateCartRows bool
	ConfirmationTitle string

	loc journey.Locators

	mu sync.Mutex
	// loggedIn is per page; every page belongs to a fresh browser context.
	loggedIn map[*browsertest.Page]bool
	viewing  string
	cart     []string
	orders   []Order
	pages    []*browsertest.Page
	visits   int
}

// New creates a store that behaves like the live demo.
func New() *Store {
	return &Store{
		Username:           "test",
		Password:           "test",
		Products:           append([]string(nil), DefaultProducts...),
		CatalogStatus:      200,
		CatalogContentType: "application/json",
		AddedMessage:       "Product added.",
		ConfirmationTitle:  "Thank you for your purchase!",
		loc:                journey.DefaultLocators(),
		loggedIn:           make(map[*browsertest.Page]bool),
	}
}

// NewPage creates a page wired to the store. It fits browsertest.Launcher.PageFactory.
func (s *Store) NewPage() *browsertest.Page {
	page := browsertest.NewPage()
	page.GotoFunc = func(ctx context.Context, url string) error {
		s.home(page)
		return nil
	}

	s.mu.Lock()
	s.pages = append(s.pages, page)
	s.mu.Unlock()
	return page
}

// Pages returns every page created so far.
func (s *Store) Pages() []*browsertest.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*browsertest.Page(nil), s.pages...)
}

// Cart returns the items currently in the cart.
func (s *Store) Cart() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cart...)
}

// Orders returns every submitted order.
func (s *Store) Orders() []Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Order(nil), s.orders...)
}

// Visits counts home page loads.
func (s *Store) Visits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits
}

// home renders the landing page and replays the catalog request it makes.
func (s *Store) home(page *browsertest.Page) {
	s.mu.Lock()
	s.visits++
	loggedIn := s.loggedIn[page]
	username := s.Username
	products := append([]string(nil), s.Products...)
	s.mu.Unlock()

	page.Set(s.loc.LoginLink, browsertest.ElementState{Visible: !loggedIn, Text: "Log in", OnClick: func() { s.openLogin(page) }})
	page.Set(s.loc.CartLink, browsertest.ElementState{Visible: true, Text: "Cart", OnClick: func() { s.openCart(page) }})
	if loggedIn {
		page.Show(s.loc.Welcome, "Welcome "+username)
	}
	for _, name := range products {
		page.Set(s.loc.ProductLink(name), browsertest.ElementState{Visible: true, Text: name, OnClick: func() { s.openProduct(page, name) }})
	}

	page.EmitRequest("GET", CatalogURL)
	page.EmitResponse(&browsertest.Response{
		ResponseURL: CatalogURL,
		StatusCode:  s.CatalogStatus,
		Type:        s.CatalogContentType,
		Payload:     []byte(s.catalogBody(products)),
	})
}

func (s *Store) catalogBody(products []string) string {
	if s.CatalogBody != "" {
		return s.CatalogBody
	}
	type entry struct {
		ID    int    `json:"id"`
		Cat   string `json:"cat"`
		Title string `json:"title"`
	}
	items := make([]entry, len(products))
	for i, name := range products {
		items[i] = entry{ID: i + 1, Cat: "phone", Title: name}
	}
	body, _ := json.Marshal(map[string]any{
		"Items":            items,
		"LastEvaluatedKey": map[string]string{"id": "9"},
	})
	return string(body)
}

func (s *Store) openLogin(page *browsertest.Page) {
	page.Show(s.loc.Username, "")
	page.Show(s.loc.Password, "")
	page.Set(s.loc.LoginButton, browsertest.ElementState{Visible: true, Text: "Log in", OnClick: func() { s.login(page) }})
}

func (s *Store) login(page *browsertest.Page) {
	user, pass := page.Value(s.loc.Username), page.Value(s.loc.Password)

	s.mu.Lock()
	var rejection string
	switch {
	case user != s.Username:
		rejection = "User does not exist."
	case pass != s.Password:
		rejection = "Wrong password."
	default:
		s.loggedIn[page] = true
	}
	s.mu.Unlock()

	if rejection != "" {
		page.EmitDialog("alert", rejection)
		return
	}
	page.Hide(s.loc.Username)
	page.Hide(s.loc.Password)
	page.Hide(s.loc.LoginButton)
	page.Hide(s.loc.LoginLink)
	page.Show(s.loc.Welcome, "Welcome "+user)
}

func (s *Store) openProduct(page *browsertest.Page, name string) {
	s.mu.Lock()
	s.viewing = name
	s.mu.Unlock()

	page.Show(s.loc.ProductTitle, name)
	page.Set(s.loc.AddToCart, browsertest.ElementState{Visible: true, Text: "Add to cart", OnClick: func() { s.addToCart(page) }})
}

func (s *Store) addToCart(page *browsertest.Page) {
	s.mu.Lock()
	s.cart = append(s.cart, s.viewing)
	message := s.AddedMessage
	delay := s.AddedDialogDelay
	suppress := s.SuppressAddedDialog
	s.mu.Unlock()

	switch {
	case suppress:
	case delay > 0:
		go func() {
			time.Sleep(delay)
			page.EmitDialog("alert", message)
		}()
	default:
		page.EmitDialog("alert", message)
	}
}

func (s *Store) openCart(page *browsertest.Page) {
	s.mu.Lock()
	counts := make(map[string]int)
	for _, item := range s.cart {
		counts[item]++
		if s.DuplicateCartRows {
			counts[item]++
		}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	s.mu.Unlock()

	for item, n := range counts {
		page.Set(s.loc.CartRows.Containing(item), browsertest.ElementState{Visible: true, Text: item, Count: n})
	}
	page.Set(s.loc.CartRows, browsertest.ElementState{Visible: total > 0, Count: total})
	page.Set(s.loc.PlaceOrder, browsertest.ElementState{Visible: true, Text: "Place Order", OnClick: func() { s.openCheckout(page) }})
}

func (s *Store) openCheckout(page *browsertest.Page) {
	for _, field := range []browser.Target{s.loc.Name, s.loc.Country, s.loc.City, s.loc.Card, s.loc.Month, s.loc.Year} {
		page.Show(field, "")
	}
	page.Set(s.loc.Purchase, browsertest.ElementState{Visible: true, Text: "Purchase", OnClick: func() { s.purchase(page) }})
}

func (s *Store) purchase(page *browsertest.Page) {
	details := journey.CheckoutDetails{
		Name:    page.Value(s.loc.Name),
		Country: page.Value(s.loc.Country),
		City:    page.Value(s.loc.City),
		Card:    page.Value(s.loc.Card),
		Month:   page.Value(s.loc.Month),
		Year:    page.Value(s.loc.Year),
	}

	s.mu.Lock()
	s.orders = append(s.orders, Order{Items: s.cart, Details: details})
	s.cart = nil
	title := s.ConfirmationTitle
	s.mu.Unlock()

	page.Show(s.loc.ConfirmationTitle, title)
	page.Set(s.loc.ConfirmOK, browsertest.ElementState{Visible: true, Text: "OK", OnClick: func() {
		page.Hide(s.loc.ConfirmationTitle)
		page.Hide(s.loc.ConfirmOK)
	}})
}
