package core

import (
	"fmt"
	"strings"
)

// Category 是目录品类的显式枚举，字符串 key 只在边界处解析一次。
type Category int

const (
	CategoryUnknown      Category = 0
	CategoryRecipe       Category = 1
	CategoryDevice       Category = 2
	CategoryVenue        Category = 3
	CategoryCake         Category = 4
	CategorySportingGood Category = 5
)

// NumCategories 是已知品类数量，用于定长数组。
const NumCategories = 5

var categoryKeys = [NumCategories + 1]string{"unknown", "recipe", "device", "venue", "cake", "sporting_good"}

// AllCategories 返回全部已知品类（按枚举顺序）。
func AllCategories() []Category {
	return []Category{CategoryRecipe, CategoryDevice, CategoryVenue, CategoryCake, CategorySportingGood}
}

// Valid 判断是否为已知品类。
func (c Category) Valid() bool {
	return c >= CategoryRecipe && c <= CategorySportingGood
}

// Index 返回 0 起始的下标，未知品类返回 -1。
func (c Category) Index() int {
	if !c.Valid() {
		return -1
	}
	return int(c) - 1
}

func (c Category) String() string {
	if !c.Valid() {
		return categoryKeys[0]
	}
	return categoryKeys[c]
}

// Label 返回面向用户的品类名称（用于解释文案）。
func (c Category) Label() string {
	switch c {
	case CategoryRecipe:
		return "recipes"
	case CategoryDevice:
		return "devices"
	case CategoryVenue:
		return "venues"
	case CategoryCake:
		return "cakes"
	case CategorySportingGood:
		return "sporting goods"
	default:
		return "items"
	}
}

// ParseCategory 解析品类 key，大小写不敏感，支持 "sporting-good" 等写法。
func ParseCategory(s string) (Category, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch key {
	case "recipe", "recipes":
		return CategoryRecipe, nil
	case "device", "devices":
		return CategoryDevice, nil
	case "venue", "venues":
		return CategoryVenue, nil
	case "cake", "cakes":
		return CategoryCake, nil
	case "sporting_good", "sporting_goods", "sport":
		return CategorySportingGood, nil
	}
	return CategoryUnknown, NewDomainError(ModuleProvider, ErrorCodeInvalidInput, fmt.Sprintf("unknown category %q", s))
}

// ItemKey 是 (category, itemId) 的复合键，响应中唯一。
type ItemKey struct {
	Category Category
	ItemID   string
}

func (k ItemKey) String() string {
	return k.Category.String() + "-" + k.ItemID
}
