// Package names holds the static display names of Treasures token ids.
package names

import (
	"fmt"
	"math/big"
)

// series is a run of ids sharing a name prefix, numbered from 1
type series struct {
	first, last int64
	prefix      string
}

var numbered = []series{
	{1, 38, "All-Class"},
	{40, 44, "Assassin"},
	{56, 67, "Common"},
	{83, 89, "Fighter"},
	{106, 113, "Numeraire"},
	{118, 130, "Range"},
	{134, 140, "Riverman"},
	{142, 143, "Seed of Life"},
	{144, 149, "Siege"},
	{154, 159, "Spellcaster"},
}

var fixed = map[int64]string{
	39:  "Ancient Relic",
	45:  "Assassin",
	46:  "Bag of Rare Mushrooms",
	47:  "Bait for Monsters",
	48:  "Beetle-wing",
	49:  "Blue Rupee",
	50:  "Bombmaker",
	51:  "Bottomless Elixir",
	52:  "Cap of Invisibility",
	53:  "Carriage",
	54:  "Castle",
	55:  "Clocksnatcher",
	68:  "Common Bead",
	69:  "Common Feather",
	70:  "Common Legion",
	71:  "Common Relic",
	72:  "Cow",
	73:  "Diamond",
	74:  "Divine Hourglass",
	75:  "Divine Mask",
	76:  "Donkey",
	77:  "Dragon Tail",
	78:  "Dreamwinder",
	79:  "Emerald",
	80:  "Extra Life",
	81:  "Fallen",
	82:  "Favor from the Gods",
	90:  "Fighter",
	91:  "Framed Butterfly",
	92:  "Gold Coin",
	93:  "Grain",
	94:  "Green Rupee",
	95:  "Grin",
	96:  "Half-Penny",
	97:  "Honeycomb",
	98:  "Immovable Stone",
	99:  "Ivory Breastpin",
	100: "Jar of Fairies",
	102: "Keys",
	103: "Lumber",
	104: "Military Stipend",
	105: "Mollusk Shell",
	114: "Ox",
	115: "Pearl",
	116: "Pot of Gold",
	117: "Quarter-Penny",
	131: "Range",
	132: "Red Feather",
	133: "Red Rupee",
	141: "Score of Ivory",
	150: "Siege",
	151: "Silver Coin",
	152: "Small Bird",
	153: "Snow White Feather",
	160: "Spellcaster",
	161: "Thread of Divine Silk",
	162: "Unbreakable Pocketwatch",
	163: "Warlock",
	164: "Witches Broom",
}

// Lookup returns the display name of a token id, or false when the id has none
func Lookup(tokenID *big.Int) (string, bool) {
	if tokenID == nil || !tokenID.IsInt64() {
		return "", false
	}
	id := tokenID.Int64()

	if name, ok := fixed[id]; ok {
		return name, true
	}
	for _, s := range numbered {
		if id >= s.first && id <= s.last {
			// All-Class keeps the raw id, the other series count from 1
			if s.first == 1 {
				return fmt.Sprintf("%s %d", s.prefix, id), true
			}
			return fmt.Sprintf("%s %d", s.prefix, id-s.first+1), true
		}
	}

	return "", false
}
