package marketdata

import "encoding/json"

// PriceCell is one quantized price row of a footprint bar.
// Total volume and delta are derived on read.
type PriceCell struct {
	Price       float64
	BuyVolume   float64
	SellVolume  float64
	TradesCount int
}

func (c PriceCell) TotalVolume() float64 {
	return c.BuyVolume + c.SellVolume
}

func (c PriceCell) Delta() float64 {
	return c.BuyVolume - c.SellVolume
}

type priceCellJSON struct {
	Price       float64 `json:"price"`
	BuyVolume   float64 `json:"buyVolume"`
	SellVolume  float64 `json:"sellVolume"`
	TotalVolume float64 `json:"totalVolume"`
	Delta       float64 `json:"delta"`
	TradesCount int     `json:"tradesCount"`
}

func (c PriceCell) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceCellJSON{
		Price:       c.Price,
		BuyVolume:   c.BuyVolume,
		SellVolume:  c.SellVolume,
		TotalVolume: c.TotalVolume(),
		Delta:       c.Delta(),
		TradesCount: c.TradesCount,
	})
}

func (c *PriceCell) UnmarshalJSON(data []byte) error {
	var raw priceCellJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = PriceCell{Price: raw.Price, BuyVolume: raw.BuyVolume, SellVolume: raw.SellVolume, TradesCount: raw.TradesCount}
	return nil
}

// FootprintBar is one time bucket [BucketStart, BucketEnd) with its price ladder.
// OHLC is nil only for leading buckets that have no trade and no prior close.
type FootprintBar struct {
	BucketStart int64       `json:"bucketStart"`
	BucketEnd   int64       `json:"bucketEnd"`
	Open        *float64    `json:"open"`
	High        *float64    `json:"high"`
	Low         *float64    `json:"low"`
	Close       *float64    `json:"close"`
	TotalVolume float64     `json:"totalVolume"`
	BuyVolume   float64     `json:"buyVolume"`
	SellVolume  float64     `json:"sellVolume"`
	Delta       float64     `json:"delta"`
	TradesCount int         `json:"tradesCount"`
	Cells       []PriceCell `json:"cells"`
}

func (b FootprintBar) Empty() bool {
	return b.TradesCount == 0
}

// CumulativeDeltaPoint is one point of the running delta series.
type CumulativeDeltaPoint struct {
	Timestamp       int64   `json:"timestamp"`
	CumulativeDelta float64 `json:"cumulativeDelta"`
}

// VolumeBucket is the cell-less, chart oriented view of a bucket.
type VolumeBucket struct {
	Timestamp        int64   `json:"timestamp"`
	BuyVolume        float64 `json:"buyVolume"`
	SellVolume       float64 `json:"sellVolume"`
	Delta            float64 `json:"delta"`
	TotalVolume      float64 `json:"totalVolume"`
	Imbalance        float64 `json:"imbalance"`
	ImbalancePercent float64 `json:"imbalancePercent"`
	DominantSide     *Side   `json:"dominantSide"`
}
