package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/uhyunpark/anthic/pkg/intent"
	"github.com/uhyunpark/anthic/pkg/model"
	"github.com/uhyunpark/anthic/pkg/subintent"
)

// inspect decodes a signed partial transaction (argument or stdin), checks
// its signatures and prints the recovered order.
func main() {
	venuePath := flag.String("venue", "", "venue TOML for the instamint config; defaults to the devnet venue")
	flag.Parse()

	venue := model.DevnetVenue()
	if *venuePath != "" {
		v, err := model.LoadVenueFile(*venuePath)
		if err != nil {
			fail(err)
		}
		venue = v
	}

	hex, err := readInput(flag.Args())
	if err != nil {
		fail(err)
	}
	report, err := inspect(hex, venue)
	if err != nil {
		fail(err)
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}

type report struct {
	Hash       string                          `json:"hash"`
	Signers    []string                        `json:"signers"`
	NetworkID  uint8                           `json:"network_id"`
	Epochs     [2]uint64                       `json:"epochs"`
	ExpiresAt  *time.Time                      `json:"expires_at,omitempty"`
	Manifest   []string                        `json:"manifest"`
	Instamint  *subintent.InstamintDefinition  `json:"instamint,omitempty"`
	Order      *subintent.LimitOrderDefinition `json:"order,omitempty"`
	Rejection  string                          `json:"rejection,omitempty"`
	SellSymbol string                          `json:"sell_symbol,omitempty"`
	BuySymbol  string                          `json:"buy_symbol,omitempty"`
}

func inspect(hex string, venue model.VenueFile) (report, error) {
	tx, err := intent.DecodeHex(hex)
	if err != nil {
		return report{}, err
	}
	h, signers, err := tx.Verify()
	if err != nil {
		return report{}, err
	}

	hdr := tx.Subintent.Header
	r := report{
		Hash:      h.String(),
		NetworkID: hdr.NetworkID,
		Epochs:    [2]uint64{hdr.StartEpochInclusive, hdr.EndEpochExclusive},
	}
	if hdr.MaxProposerTimestampExclusive != nil {
		at := hdr.ExpiresAt().UTC()
		r.ExpiresAt = &at
	}
	for _, s := range signers {
		r.Signers = append(r.Signers, s.String())
	}
	for _, in := range tx.Subintent.Manifest.Instructions {
		r.Manifest = append(r.Manifest, fmt.Sprint(in))
	}

	var im *model.InstamintConfig
	if cfg, ok := venue.InstamintConfig(); ok {
		im = &cfg
	}
	mint, def, err := subintent.RecoverOrder(tx.Subintent, im)
	if err != nil {
		r.Rejection = err.Error()
		return r, nil
	}
	r.Instamint = mint
	r.Order = &def
	cfg := venue.AnthicConfig()
	r.SellSymbol, _ = cfg.Symbol(def.Trade.Sell.Resource)
	r.BuySymbol, _ = cfg.Symbol(def.Trade.Buy.Resource)
	return r, nil
}

func readInput(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "", fmt.Errorf("no signed partial transaction given")
	}
	return s, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
	os.Exit(1)
}
