// Prompt construction shared by the producer adapters.
//
// Image prompts prepend structural keywords per asset type so the upstream
// model draws exactly what was asked (a product shot for items, a portrait
// for NPCs, a wide shot for locations). The same resolved parameters are also
// rendered into a human-readable summary that is persisted on the record for
// audit and reproducibility.
package producer

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Asset content types accepted in generation requests.
const (
	AssetItem     = "Item"
	AssetWeapon   = "Weapon"
	AssetNPC      = "NPC"
	AssetLocation = "Location"
)

// titleCaser normalizes client-supplied asset types and genres for prompts
// and summaries ("cyberpunk" and "CYBERPUNK" both become "Cyberpunk").
var titleCaser = cases.Title(language.English)

// NormalizeAssetType maps a client-supplied asset type onto one of the known
// constants, defaulting to Item for unknown values. NPC keeps its upper-case
// spelling.
func NormalizeAssetType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weapon":
		return AssetWeapon
	case "npc":
		return AssetNPC
	case "location":
		return AssetLocation
	default:
		return AssetItem
	}
}

// imagePrefix returns the structural prompt prefix for an asset type.
func imagePrefix(assetType string) string {
	switch assetType {
	case AssetItem, AssetWeapon:
		return "isolated object, 3d render, white background, single weapon asset, detailed product shot, "
	case AssetNPC:
		return "character portrait, face closeup, rpg character art, detailed, looking at camera, "
	case AssetLocation:
		return "wide shot, environment concept art, landscape, detailed scenery, "
	}
	return ""
}

// ImagePrompt builds the full image-generation prompt for a request.
func ImagePrompt(req Request) string {
	return fmt.Sprintf("%s %s style, %s", imagePrefix(req.AssetType), req.Genre, req.Details)
}

// Summary renders the resolved request parameters into the audit string
// stored on the generation record.
func Summary(req Request) string {
	parts := []string{req.AssetType, titleCaser.String(strings.TrimSpace(req.Genre))}
	if d := strings.TrimSpace(req.Details); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " / ")
}
