package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/anthic/params"
	"github.com/uhyunpark/anthic/pkg/client"
	"github.com/uhyunpark/anthic/pkg/crypto"
	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/subintent"
	"github.com/uhyunpark/anthic/pkg/tradeapi"
	"github.com/uhyunpark/anthic/pkg/util"
)

// sign-order builds a limit order subintent, signs it and prints the signed
// partial transaction. With -submit it is posted to the trade API.
func main() {
	var (
		keyHex     = flag.String("key", os.Getenv("ANTHIC_PRIVATE_KEY"), "secp256k1 private key hex; a new key is generated if empty")
		sellSymbol = flag.String("sell", "xUSDC", "token to sell")
		sellAmount = flag.String("sell-amount", "100", "amount to sell")
		buySymbol  = flag.String("buy", "xwBTC", "token to buy")
		buyAmount  = flag.String("buy-amount", "0.001", "minimum amount to receive")
		maker      = flag.Bool("maker", false, "pay the maker fee instead of the taker fee")
		instamint  = flag.Bool("instamint", false, "mint the sold amount plus fees on credit first")
		offline    = flag.Bool("offline", false, "use the built-in devnet venue instead of the trade API")
		submit     = flag.Bool("submit", false, "post the signed order to the trade API")
	)
	flag.Parse()

	cfg, err := params.LoadFromEnv("")
	if err != nil {
		fail("config", err)
	}
	if err := run(cfg, *keyHex, *sellSymbol, *sellAmount, *buySymbol, *buyAmount, *maker, *instamint, *offline, *submit); err != nil {
		fail("sign-order", err)
	}
}

func run(cfg params.Config, keyHex, sellSymbol, sellAmount, buySymbol, buyAmount string, maker, useInstamint, offline, submit bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.HTTPTimeout)
	defer cancel()

	// Step 1: key
	var signer *crypto.Signer
	var err error
	if keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(keyHex)
	} else {
		signer, err = crypto.GenerateKey()
		if err == nil {
			fmt.Fprintf(os.Stderr, "Generated key %s (KEEP SECRET!)\n", signer.PrivateKeyHex())
		}
	}
	if err != nil {
		return err
	}
	account := signer.Account()
	fmt.Fprintf(os.Stderr, "Account: %s\n", account)

	// Step 2: venue
	api := tradeapi.NewClient(cfg.Client.TradeAPIURL, cfg.Client.APIKey, cfg.Client.HTTPTimeout)
	var dir client.Directory = client.NewHTTPDirectory(api)
	networkID := cfg.Node.NetworkID
	if offline {
		venue := model.DevnetVenue()
		dir = client.NewStaticDirectory(venue, cfg.Client.APIKey)
		networkID = venue.NetworkID
	}
	venue, err := dir.LoadAnthicConfig(ctx)
	if err != nil {
		return err
	}
	epoch, err := dir.CurrentEpoch(ctx)
	if err != nil {
		return err
	}
	info, err := dir.LoadAddressInfo(ctx, account)
	if err != nil {
		return err
	}

	// Step 3: order and fees
	sell, err := tokenAmount(sellSymbol, sellAmount)
	if err != nil {
		return err
	}
	buy, err := tokenAmount(buySymbol, buyAmount)
	if err != nil {
		return err
	}
	role := subintent.Taker
	if maker {
		role = subintent.Maker
	}
	quote, err := subintent.QuoteFees(venue, info, sell, role)
	if err != nil {
		return err
	}

	b := subintent.NewBuilder(venue)
	if useInstamint {
		im, err := dir.LoadInstamintConfig(ctx)
		if err != nil {
			return err
		}
		acct, err := dir.LoadAnthicAccount(ctx)
		if err != nil {
			return err
		}
		if acct.Address != account || acct.InstamintCustomerBadgeLocalID == nil {
			return fmt.Errorf("%w: api key account %s does not hold a badge for %s", subintent.ErrNoBadge, acct.Address, account)
		}
		toMint := subintent.TokenAmount{Symbol: sell.Symbol, Amount: sell.Amount.Add(quote.Total())}
		b.InstamintIntoAccount(im, account, *acct.InstamintCustomerBadgeLocalID, toMint)
	}
	m, err := b.AddLimitOrder(account, sell, buy, quote.Settlement, quote.Venue).Build()
	if err != nil {
		return err
	}

	// Step 4: sign
	sub, err := intent.Compose(intent.ComposeOptions{
		NetworkID:    networkID,
		CurrentEpoch: epoch,
		Expiry:       cfg.Client.IntentExpiry,
	}, util.RealClock{}, m)
	if err != nil {
		return err
	}
	tx, err := intent.Sign(sub, signer)
	if err != nil {
		return err
	}
	h, err := sub.Hash()
	if err != nil {
		return err
	}
	hex, err := tx.EncodeHex()
	if err != nil {
		return err
	}

	summary, _ := json.MarshalIndent(map[string]any{
		"hash":           h.String(),
		"account":        account.String(),
		"public_key":     signer.PublicKeyHex(),
		"sell":           sell,
		"buy":            buy,
		"fee_role":       role.String(),
		"settlement_fee": quote.Settlement.String(),
		"venue_fee":      quote.Venue.String(),
		"instamint":      useInstamint,
		"expires_at":     sub.Header.ExpiresAt().UTC(),
	}, "", "  ")
	fmt.Fprintln(os.Stderr, string(summary))
	fmt.Println(hex)

	if !submit {
		return nil
	}
	resp, err := api.SubmitSubintent(ctx, hex)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Submitted: id=%s hash=%s\n", resp.ID, resp.Hash)
	return nil
}

func tokenAmount(symbol, amount string) (subintent.TokenAmount, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return subintent.TokenAmount{}, fmt.Errorf("amount %q: %w", amount, err)
	}
	return subintent.TokenAmount{Symbol: symbol, Amount: d}, nil
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
