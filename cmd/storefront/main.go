// storefront is a terminal front end for the dental storefront API.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	storefront register -u NAME -p PASSWORD
//	storefront login -u NAME -p PASSWORD
//	storefront logout
//	storefront products [-search TEXT] [-category NAME] [-tag TAG]... [-page N] [-json]
//	storefront add-product -name NAME -description TEXT -price N [-discounted N] [-category NAME] [-tags a,b] [-image FILE]
//	storefront order -item ID:QTY... -name NAME -phone PHONE -address ADDRESS
//	storefront enquiry
//	storefront contact -name NAME -email EMAIL -message TEXT [-phone PHONE] [-subject TEXT]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"dental-storefront/internal/cart"
	"dental-storefront/internal/checkout"
	"dental-storefront/internal/client"
	"dental-storefront/internal/config"
	"dental-storefront/internal/domain"
	"dental-storefront/internal/storefront"
)

var errUsage = errors.New("invalid usage")

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errUsage
	}

	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	api := client.New(cfg.APIURL, client.WithTokenStore(client.NewFileTokenStore(cfg.TokenFile)))
	messenger := checkout.New(cfg.WhatsApp)

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return runRegister(ctx, api, rest, stdout, stderr)
	case "login":
		return runLogin(ctx, api, rest, stdout, stderr)
	case "logout":
		if err := api.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Logged out")
		return nil
	case "products":
		return runProducts(ctx, api, rest, stdout, stderr)
	case "add-product":
		return runAddProduct(ctx, api, rest, stdout, stderr)
	case "order":
		return runOrder(ctx, api, messenger, rest, stdout, stderr)
	case "enquiry":
		fmt.Fprintln(stdout, storefront.NewSession(api, storefront.WithMessenger(messenger)).EnquiryLink())
		return nil
	case "contact":
		return runContact(api, messenger, rest, stdout, stderr)
	case "-h", "-help", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `storefront - dental storefront terminal client

Usage:
  storefront <command> [options]

Commands:
  register     Create an admin account
  login        Log in and remember the admin token
  logout       Forget the admin token
  products     Browse the catalog with search, category, tag and page filters
  add-product  Create a product (admin)
  order        Build a WhatsApp order link for a list of products
  enquiry      Print the general WhatsApp enquiry link
  contact      Build a WhatsApp link for a contact form message

Environment:
  STOREFRONT_API_URL     API base URL (default http://localhost:8080/api)
  STOREFRONT_TOKEN_FILE  Where the admin token is kept (default .storefront-token)
  WHATSAPP_NUMBER        Shop number for order links (optional)
`)
}

func newFlagSet(name, usage string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: storefront %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func credentialsFlags(name string, args []string, stderr io.Writer) (string, string, error) {
	fs := newFlagSet(name, name+" -u NAME -p PASSWORD", stderr)
	var username, password string
	fs.StringVar(&username, "u", "", "Username (required)")
	fs.StringVar(&password, "p", "", "Password (required)")
	if err := parseFlags(fs, args); err != nil {
		return "", "", err
	}
	if username == "" || password == "" {
		fs.Usage()
		return "", "", errUsage
	}
	return username, password, nil
}

func runRegister(ctx context.Context, api *client.Client, args []string, stdout, stderr io.Writer) error {
	username, password, err := credentialsFlags("register", args, stderr)
	if err != nil {
		return err
	}
	user, err := api.Register(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Registered %s (%s)\n", user.Username, user.ID)
	return nil
}

func runLogin(ctx context.Context, api *client.Client, args []string, stdout, stderr io.Writer) error {
	username, password, err := credentialsFlags("login", args, stderr)
	if err != nil {
		return err
	}
	if _, err := api.Login(ctx, username, password); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Logged in as %s\n", username)
	return nil
}

// multiFlag collects repeated string flags.
type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func runProducts(ctx context.Context, api *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("products", "products [options]", stderr)
	var (
		search, category string
		tags             multiFlag
		page             int
		asJSON           bool
	)
	fs.StringVar(&search, "search", "", "Case-insensitive text in name or description")
	fs.StringVar(&category, "category", "", "Exact category name")
	fs.Var(&tags, "tag", "Tag filter, repeat for several (any match)")
	fs.IntVar(&page, "page", 1, "Page number")
	fs.BoolVar(&asJSON, "json", false, "Print the page as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	session := storefront.NewSession(api)
	if err := session.Refresh(ctx); err != nil {
		return err
	}
	session.SetSearch(search)
	session.SetCategory(category)
	selected := map[string]bool{}
	for _, t := range tags {
		if !selected[t] {
			selected[t] = true
			session.ToggleTag(t)
		}
	}
	session.SetPage(page)
	view := session.View()

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view.Result.Products)
	}
	printCatalogPage(stdout, view)
	if view.Result.Empty() && view.Criteria.HasActiveFilters() {
		session.ClearFilters()
		fmt.Fprintf(stdout, "Try clearing the search, category or tag filters (%d products in the catalog).\n",
			session.View().Result.Total())
	}
	return nil
}

// pagerSize is the number of page links shown around the current page.
const pagerSize = 5

func printCatalogPage(w io.Writer, v storefront.View) {
	res := v.Result
	if res.Empty() {
		fmt.Fprintln(w, "No products found")
		return
	}
	if len(res.Products) == 0 {
		fmt.Fprintf(w, "No products on page %d\n", res.Page)
	}
	for _, p := range res.Products {
		price := "₹" + formatPrice(p.Price)
		if p.HasDiscount() {
			price = fmt.Sprintf("₹%s (was ₹%s)", formatPrice(p.EffectivePrice()), formatPrice(p.Price))
		}
		fmt.Fprintf(w, "%-26s %-32s %-12s %s\n", p.ID, p.Name, p.Category, price)
		for _, u := range p.ImageURLs() {
			fmt.Fprintf(w, "    image: %s\n", u)
		}
	}
	fmt.Fprintf(w, "\nPage %d of %d, %d products\n", res.Page, res.TotalPages, res.Total())
	if res.TotalPages < 2 {
		return
	}

	links := make([]string, 0, pagerSize)
	for _, n := range res.PageWindow(pagerSize) {
		if n == res.Page {
			links = append(links, fmt.Sprintf("[%d]", n))
		} else {
			links = append(links, strconv.Itoa(n))
		}
	}
	fmt.Fprintf(w, "Pages: %s\n", strings.Join(links, " "))
	if res.HasPrev() {
		fmt.Fprintf(w, "Previous: -page %d\n", min(res.Page-1, res.TotalPages))
	}
	if res.HasNext() {
		fmt.Fprintf(w, "Next: -page %d\n", res.Page+1)
	}
}

func runAddProduct(ctx context.Context, api *client.Client, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("add-product", "add-product -name NAME -description TEXT -price N [options]", stderr)
	var (
		in         client.ProductInput
		discounted float64
		tags       string
		imagePath  string
	)
	fs.StringVar(&in.Name, "name", "", "Product name (required)")
	fs.StringVar(&in.Description, "description", "", "Description (required)")
	fs.Float64Var(&in.Price, "price", 0, "Base price in rupees (required)")
	fs.Float64Var(&discounted, "discounted", 0, "Discounted price in rupees")
	fs.StringVar(&in.Category, "category", domain.DefaultCategory, "Category")
	fs.StringVar(&tags, "tags", "", "Comma separated tags")
	fs.StringVar(&imagePath, "image", "", "Image file to upload")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.Name == "" || in.Description == "" || in.Price <= 0 {
		fs.Usage()
		return errUsage
	}
	if !api.LoggedIn() {
		return errors.New("not logged in (run `storefront login` first)")
	}
	if discounted > 0 {
		in.DiscountedPrice = &discounted
	}
	in.Tags = splitTags(tags)

	session := storefront.NewSession(api)
	if err := session.Refresh(ctx); err != nil {
		return err
	}

	var (
		created *domain.Product
		err     error
	)
	if imagePath != "" {
		f, openErr := os.Open(imagePath)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		created, err = api.CreateProductWithImage(ctx, in, client.Image{Filename: filepath.Base(imagePath), Content: f})
	} else {
		created, err = api.CreateProduct(ctx, in)
	}
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%w (run `storefront login` first)", err)
	}
	if err != nil {
		return err
	}
	session.AddProduct(*created)
	fmt.Fprintf(stdout, "Created %s (%s)\n", created.Name, created.ID)
	fmt.Fprintf(stdout, "Catalog now lists %d products\n", session.View().Result.Total())
	return nil
}

// parseItem reads "ID:QTY"; a bare ID means one unit.
func parseItem(raw string) (string, int, error) {
	id, qty, found := strings.Cut(raw, ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", 0, fmt.Errorf("invalid item %q", raw)
	}
	if !found {
		return id, 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return "", 0, fmt.Errorf("invalid quantity in %q", raw)
	}
	return id, n, nil
}

func runOrder(ctx context.Context, api *client.Client, messenger *checkout.Messenger, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("order", "order -item ID:QTY... -name NAME -phone PHONE -address ADDRESS", stderr)
	var (
		items    multiFlag
		customer checkout.Customer
	)
	fs.Var(&items, "item", "Product ID with optional quantity, e.g. 42:2 (repeatable)")
	fs.StringVar(&customer.Name, "name", "", "Customer name")
	fs.StringVar(&customer.Phone, "phone", "", "Customer phone")
	fs.StringVar(&customer.Address, "address", "", "Delivery address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if len(items) == 0 {
		fs.Usage()
		return errUsage
	}

	session := storefront.NewSession(api, storefront.WithMessenger(messenger))
	if err := session.Refresh(ctx); err != nil {
		return err
	}
	byID := make(map[string]domain.Product)
	for _, p := range session.View().Result.Filtered {
		byID[p.ID] = p
	}

	basket := session.Cart()
	unsubscribe := basket.Subscribe(func(s cart.State) {
		fmt.Fprintf(stderr, "Cart: %d items, ₹%s\n", s.TotalItems(), formatPrice(s.TotalPrice()))
	})
	err := fillCart(basket, byID, items)
	unsubscribe()
	if err != nil {
		return err
	}

	order, err := session.Checkout(customer)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, order.Message)
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, order.Link)
	return nil
}

func fillCart(basket *cart.Container, byID map[string]domain.Product, items []string) error {
	for _, raw := range items {
		id, qty, err := parseItem(raw)
		if err != nil {
			return err
		}
		p, ok := byID[id]
		if !ok {
			return fmt.Errorf("unknown product %q", id)
		}
		if err := basket.AddToCart(p, qty); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
	}
	return nil
}

func runContact(api *client.Client, messenger *checkout.Messenger, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("contact", "contact -name NAME -email EMAIL -message TEXT [options]", stderr)
	var form checkout.ContactForm
	fs.StringVar(&form.Name, "name", "", "Your name (required)")
	fs.StringVar(&form.Email, "email", "", "Your email (required)")
	fs.StringVar(&form.Phone, "phone", "", "Phone number")
	fs.StringVar(&form.Subject, "subject", "", "Subject")
	fs.StringVar(&form.Message, "message", "", "Message (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	link, err := storefront.NewSession(api, storefront.WithMessenger(messenger)).ContactLink(form)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, link)
	return nil
}

func splitTags(raw string) []string {
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
