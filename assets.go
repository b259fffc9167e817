package kapsteuer

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetCategory classifies an asset for pot routing and §23 treatment.
type AssetCategory string

const (
	CategoryStock      AssetCategory = "stock"
	CategoryFund       AssetCategory = "fund"
	CategoryBond       AssetCategory = "bond"
	CategoryDerivative AssetCategory = "derivative"
	CategoryOther      AssetCategory = "other"
)

// FundType drives the Teilfreistellung rate for fund income, fund gains and
// the Vorabpauschale. Empty for non-fund assets.
type FundType string

const (
	FundNone              FundType = ""
	FundEquity            FundType = "equity"
	FundMixed             FundType = "mixed"
	FundRealEstate        FundType = "realestate"
	FundForeignRealEstate FundType = "foreign-realestate"
	FundOther             FundType = "other"
)

// Statutory partial exemption rates (§20 InvStG) per fund type.
var exemptionRates = map[FundType]decimal.Decimal{
	FundEquity:            decimal.NewFromFloat(0.30),
	FundMixed:             decimal.NewFromFloat(0.15),
	FundRealEstate:        decimal.NewFromFloat(0.60),
	FundForeignRealEstate: decimal.NewFromFloat(0.80),
	FundOther:             decimal.Zero,
	FundNone:              decimal.Zero,
}

// ExemptionRate returns the Teilfreistellung rate for the fund type.
// Unknown types get no exemption.
func (f FundType) ExemptionRate() decimal.Decimal {
	if r, ok := exemptionRates[f]; ok {
		return r
	}
	return decimal.Zero
}

// AssetInfo is the reference data the engine needs about one asset.
type AssetInfo struct {
	Category AssetCategory `json:"category"`
	FundType FundType      `json:"fundType,omitempty"`
	// Underlying is the identifier of the underlying asset for derivatives,
	// when known.
	Underlying string `json:"underlying,omitempty"`
}

// Directory resolves asset identifiers to their reference data.
// It is an external collaborator; the engine only consumes this contract.
type Directory interface {
	Resolve(assetID string) (AssetInfo, error)
}

// UnknownAssetError reports an asset id the directory cannot resolve.
// It is fatal for the affected asset's event stream.
type UnknownAssetError struct {
	Asset string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q", e.Asset)
}

// StaticDirectory is an in-memory Directory, used by tests and the CLI driver.
type StaticDirectory map[string]AssetInfo

func (d StaticDirectory) Resolve(assetID string) (AssetInfo, error) {
	info, ok := d[assetID]
	if !ok {
		return AssetInfo{}, &UnknownAssetError{Asset: assetID}
	}
	return info, nil
}

var _ Directory = StaticDirectory(nil)
