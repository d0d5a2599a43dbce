package dispatcher

import (
	"strconv"
	"strings"

	"github.com/cakefairy/whatsapp-orderbot/internal/whatsapp"
)

// Category groups items that share collection behavior. Some categories
// skip the decorative steps entirely (no theme, message, special requests
// or design image).
type Category struct {
	Name       string
	SkipTheme  bool
	SkipDesign bool
}

var (
	categoryFreshCream   = Category{Name: "Fresh Cream Cakes"}
	categoryFruit        = Category{Name: "Fruit Cakes", SkipTheme: true, SkipDesign: true}
	categoryPlasticIcing = Category{Name: "Plastic Icing Cakes"}
)

// Item is one orderable catalog entry. FlavorCount is how many
// comma-separated flavour values the customer must supply.
type Item struct {
	ID          string
	Label       string
	Price       int
	FlavorCount int
	Category    Category
	Tierable    bool
}

// colorSurcharge applies when the colors text contains a restricted token.
const colorSurcharge = 5

var surchargeColorTokens = []string{"gold", "black"}

// ColorSurcharge returns the fixed surcharge for restricted colors, zero
// otherwise. Matching is case-insensitive containment over the whole text.
func ColorSurcharge(colors string) int {
	lower := strings.ToLower(colors)
	for _, token := range surchargeColorTokens {
		if strings.Contains(lower, token) {
			return colorSurcharge
		}
	}
	return 0
}

// PriceFromLabel parses the trailing "$N" out of an item label. Items
// without a price tag (add-ons shown for information) yield zero.
func PriceFromLabel(label string) int {
	idx := strings.LastIndex(label, "$")
	if idx < 0 {
		return 0
	}
	digits := strings.TrimSpace(label[idx+1:])
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, _ := strconv.Atoi(digits[:end])
	return n
}

func item(id, label string, flavors int, cat Category, tierable bool) Item {
	return Item{
		ID:          id,
		Label:       label,
		Price:       PriceFromLabel(label),
		FlavorCount: flavors,
		Category:    cat,
		Tierable:    tierable,
	}
}

var catalogItems = []Item{
	item("fc_cake_fairy", `Cake Fairy Cake - $20`, 1, categoryFreshCream, false),
	item("fc_double_delite", `Double Delite (2 flavours) - $25`, 2, categoryFreshCream, false),
	item("fc_triple_delite", `Triple Delite (3 flavours) - $30`, 3, categoryFreshCream, false),
	item("fc_small_6", `Small 6" - $30`, 1, categoryFreshCream, true),
	item("fc_large_8", `Large 8" - $40`, 1, categoryFreshCream, true),
	item("fc_large_10", `Large 10" - $60`, 1, categoryFreshCream, true),
	item("fc_xl_12", `Extra Large 12" - $80`, 1, categoryFreshCream, true),
	item("fc_extra_tall_7", `Extra Tall Cake 7" - $65`, 1, categoryFreshCream, true),

	item("tt_4_6", "4 inch + 6 inch - $60", 1, categoryFreshCream, false),
	item("tt_5_7", "5 inch + 7 inch - $80", 1, categoryFreshCream, false),
	item("tt_6_8", "6 inch + 8 inch - $110", 1, categoryFreshCream, false),
	item("tt_7_9", "7 inch + 9 inch - $140", 1, categoryFreshCream, false),
	item("tt_8_10", "8 inch + 10 inch - $170", 1, categoryFreshCream, false),

	item("ttt_4_6_8", "4 inch + 6 inch + 8 inch - $140", 1, categoryFreshCream, false),
	item("ttt_5_7_9", "5 inch + 7 inch + 9 inch - $170", 1, categoryFreshCream, false),
	item("ttt_6_8_10", "6 inch + 8 inch + 10 inch - $210", 1, categoryFreshCream, false),

	item("fruit_6", "6 inch - $40", 1, categoryFruit, false),
	item("fruit_8", "8 inch - $70", 1, categoryFruit, false),

	item("pi_small", "Small - $40", 1, categoryPlasticIcing, false),
	item("pi_medium", "Medium - $50", 1, categoryPlasticIcing, false),
	item("pi_large", "Large - $70", 1, categoryPlasticIcing, false),
	item("pi_xl", "Extra Large - $100", 1, categoryPlasticIcing, false),
}

var itemsByID = func() map[string]Item {
	m := make(map[string]Item, len(catalogItems))
	for _, it := range catalogItems {
		m[it.ID] = it
	}
	return m
}()

var itemsByLabel = func() map[string]Item {
	m := make(map[string]Item, len(catalogItems))
	for _, it := range catalogItems {
		m[strings.ToLower(it.Label)] = it
	}
	return m
}()

// LookupItem resolves a stored selected-item value (id or label) back to
// its catalog entry.
func LookupItem(value string) (Item, bool) {
	if it, ok := itemsByID[value]; ok {
		return it, true
	}
	it, ok := itemsByLabel[strings.ToLower(value)]
	return it, ok
}

func itemOptions(ids ...string) []whatsapp.Option {
	opts := make([]whatsapp.Option, 0, len(ids))
	for _, id := range ids {
		it := itemsByID[id]
		opts = append(opts, whatsapp.Option{ID: it.ID, Label: it.Label})
	}
	return opts
}
