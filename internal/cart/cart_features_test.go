package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
)

type cartTestContext struct {
	cart   *Container
	addErr error
}

func (c *cartTestContext) anEmptyCart() error {
	c.cart = NewContainer()
	c.addErr = nil
	return nil
}

func (c *cartTestContext) iAddOfProductPriced(qty int, id string, price float64) error {
	return c.cart.AddToCart(product(id, price, nil), qty)
}

func (c *cartTestContext) iAddOfProductPricedDiscountedTo(qty int, id string, price, discounted float64) error {
	return c.cart.AddToCart(product(id, price, &discounted), qty)
}

func (c *cartTestContext) iTryToAddOfProductPriced(qty int, id string, price float64) error {
	c.addErr = c.cart.AddToCart(product(id, price, nil), qty)
	return nil
}

func (c *cartTestContext) iSetTheQuantityOfProductTo(id string, qty int) error {
	c.cart.UpdateQuantity(id, qty)
	return nil
}

func (c *cartTestContext) iOpenTheCart() error {
	c.cart.OpenCart()
	return nil
}

func (c *cartTestContext) iClearTheCart() error {
	c.cart.ClearCart()
	return nil
}

func (c *cartTestContext) theCartHasItems(n int) error {
	if got := c.cart.TotalItems(); got != n {
		return fmt.Errorf("expected %d items, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theCartHasLines(n int) error {
	if got := len(c.cart.State().Items); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) theCartTotalIs(total float64) error {
	if got := c.cart.TotalPrice(); got != total {
		return fmt.Errorf("expected total %v, got %v", total, got)
	}
	return nil
}

func (c *cartTestContext) productHasQuantity(id string, qty int) error {
	item, ok := c.cart.State().Find(id)
	if !ok {
		return fmt.Errorf("product %s is not in the cart", id)
	}
	if item.Quantity != qty {
		return fmt.Errorf("expected quantity %d for %s, got %d", qty, id, item.Quantity)
	}
	return nil
}

func (c *cartTestContext) productIsNotInTheCart(id string) error {
	if _, ok := c.cart.State().Find(id); ok {
		return fmt.Errorf("product %s is still in the cart", id)
	}
	return nil
}

func (c *cartTestContext) theAddIsRejected() error {
	if !errors.Is(c.addErr, ErrInvalidQuantity) {
		return fmt.Errorf("expected ErrInvalidQuantity, got %v", c.addErr)
	}
	return nil
}

func (c *cartTestContext) theCartIsOpen() error {
	if !c.cart.State().IsOpen {
		return errors.New("expected the cart to be open")
	}
	return nil
}

func InitializeCartScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.anEmptyCart()
	})

	ctx.Step(`^an empty cart$`, tc.anEmptyCart)

	ctx.Step(`^I add (\d+) of product "([^"]*)" priced (\d+(?:\.\d+)?)$`, tc.iAddOfProductPriced)
	ctx.Step(`^I add (\d+) of product "([^"]*)" priced (\d+(?:\.\d+)?) discounted to (\d+(?:\.\d+)?)$`, tc.iAddOfProductPricedDiscountedTo)
	ctx.Step(`^I try to add (-?\d+) of product "([^"]*)" priced (\d+(?:\.\d+)?)$`, tc.iTryToAddOfProductPriced)
	ctx.Step(`^I set the quantity of product "([^"]*)" to (-?\d+)$`, tc.iSetTheQuantityOfProductTo)
	ctx.Step(`^I open the cart$`, tc.iOpenTheCart)
	ctx.Step(`^I clear the cart$`, tc.iClearTheCart)

	ctx.Step(`^the cart has (\d+) items$`, tc.theCartHasItems)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^the cart total is (\d+(?:\.\d+)?)$`, tc.theCartTotalIs)
	ctx.Step(`^product "([^"]*)" has quantity (\d+)$`, tc.productHasQuantity)
	ctx.Step(`^product "([^"]*)" is not in the cart$`, tc.productIsNotInTheCart)
	ctx.Step(`^the add is rejected$`, tc.theAddIsRejected)
	ctx.Step(`^the cart is open$`, tc.theCartIsOpen)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "cart",
		ScenarioInitializer: InitializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
