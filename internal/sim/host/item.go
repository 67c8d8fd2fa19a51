package host

type ItemKind uint8

const (
	ItemNone ItemKind = iota
	ItemGun
	ItemAmmo
	ItemMelee
	ItemThrowable
	ItemHat
	ItemLandmine
	ItemOther
)

var itemKindNames = [...]string{"none", "gun", "ammo", "melee", "throwable", "hat", "landmine", "other"}

func (k ItemKind) String() string {
	if int(k) < len(itemKindNames) {
		return itemKindNames[k]
	}
	return "none"
}

// TagArmor is the armor points a worn item adds.
const TagArmor = "armor"

// Item is a held item stack with typed integer tags. Items are values:
// mutate a copy and write it back with SetItemAt.
type Item struct {
	Kind   ItemKind         `json:"kind"`
	Model  int              `json:"model"`
	Amount int              `json:"amount"`
	Tags   map[string]int64 `json:"tags,omitempty"`
}

// Clone returns a deep copy.
func (it Item) Clone() Item {
	if it.Tags != nil {
		tags := make(map[string]int64, len(it.Tags))
		for k, v := range it.Tags {
			tags[k] = v
		}
		it.Tags = tags
	}
	return it
}

func (it Item) Int(key string, def int64) int64 {
	if v, ok := it.Tags[key]; ok {
		return v
	}
	return def
}

func (it Item) Has(key string) bool {
	_, ok := it.Tags[key]
	return ok
}

// With returns a copy with key set.
func (it Item) With(key string, v int64) Item {
	it = it.Clone()
	if it.Tags == nil {
		it.Tags = map[string]int64{}
	}
	it.Tags[key] = v
	return it
}

// Without returns a copy with keys removed.
func (it Item) Without(keys ...string) Item {
	it = it.Clone()
	for _, k := range keys {
		delete(it.Tags, k)
	}
	return it
}
