package market

// DefaultCatalog is the stock item set loaded at startup when seeding is
// enabled. Market prices are the reference ceilings the simulation
// discounts from.
func DefaultCatalog() []Item {
	coins := func(v int64) int64 { return v * MicrosPerCoin }
	return []Item{
		{ID: "helios-drone", Name: "Helios X2 Drone", MarketPriceMicros: coins(320)},
		{ID: "nimbus-buds", Name: "Nimbus Wireless Buds", MarketPriceMicros: coins(95)},
		{ID: "quartz-watch", Name: "Quartz Field Watch", MarketPriceMicros: coins(140)},
		{ID: "ember-grill", Name: "Ember Compact Grill", MarketPriceMicros: coins(210)},
		{ID: "aurora-lamp", Name: "Aurora Desk Lamp", MarketPriceMicros: coins(60)},
		{ID: "tundra-jacket", Name: "Tundra Shell Jacket", MarketPriceMicros: coins(180)},
		{ID: "vertex-board", Name: "Vertex Longboard", MarketPriceMicros: coins(150)},
		{ID: "copper-kettle", Name: "Copper Pour-Over Kettle", MarketPriceMicros: coins(75)},
		{ID: "falcon-cam", Name: "Falcon Action Cam", MarketPriceMicros: coins(260)},
		{ID: "orbit-speaker", Name: "Orbit Ring Speaker", MarketPriceMicros: coins(110)},
		{ID: "sierra-tent", Name: "Sierra Two-Person Tent", MarketPriceMicros: coins(230)},
		{ID: "lumen-projector", Name: "Lumen Mini Projector", MarketPriceMicros: coins(290)},
		{ID: "zephyr-fan", Name: "Zephyr Tower Fan", MarketPriceMicros: coins(85)},
		{ID: "atlas-pack", Name: "Atlas Trail Pack", MarketPriceMicros: coins(125)},
		{ID: "mosaic-chess", Name: "Mosaic Chess Set", MarketPriceMicros: coins(70)},
		{ID: "ravine-knife", Name: "Ravine Chef Knife", MarketPriceMicros: coins(105)},
	}
}
