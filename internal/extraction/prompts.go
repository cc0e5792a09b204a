package extraction

import (
	"encoding/json"
	"fmt"
)

// Per-prompt input caps. Chapter text routinely exceeds what a single
// completion can digest, so each prompt takes a bounded prefix.
const (
	zoneTextCap     = 50000
	permitTextCap   = 50000
	codeTextCap     = 50000
	industryTextCap = 40000
	feeTextCap      = 30000
)

// Output token budgets per prompt family.
const (
	largeMaxTokens = 8000
	smallMaxTokens = 4000
)

// industryInstructions steer the industry-permit prompt per vertical.
var industryInstructions = map[string]string{
	"food":          "Extract all food-related permits: restaurants, food trucks, health dept requirements, liquor licenses, cottage food, catering, mobile vendors.",
	"beauty":        "Extract all beauty/personal care permits: salons, barbershops, tattoo parlors, massage establishments, spas, nail salons.",
	"pet":           "Extract all pet industry permits: grooming, boarding/kennels, veterinary clinics, pet stores, doggy daycares.",
	"fitness":       "Extract all fitness/wellness permits: gyms, pools, spas, yoga studios, martial arts, personal training.",
	"childcare":     "Extract all childcare/education permits: daycares, preschools, tutoring centers, private schools.",
	"healthcare":    "Extract all healthcare permits: medical offices, urgent care, pharmacies, labs, dental offices.",
	"auto":          "Extract all auto industry permits: repair shops, dealerships, car washes, gas stations, body shops.",
	"entertainment": "Extract all entertainment permits: event venues, theaters, nightclubs, arcades, bowling alleys.",
	"religious":     "Extract all religious facility requirements: churches, mosques, temples, religious schools.",
}

// Industries lists the verticals swept during a full extraction job.
func Industries() []string {
	return []string{"food", "beauty", "pet", "fitness", "childcare", "healthcare", "auto", "entertainment"}
}

func capText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func zonesPrompt(jurisdictionID, codeText string) string {
	return fmt.Sprintf(`You are extracting zoning district regulations from a municipal code.

JURISDICTION: %s

MUNICIPAL CODE TEXT:
%s

Extract ALL zoning districts mentioned into this exact JSON format. Be thorough.

[
  {
    "zone_code": "R-1",
    "zone_name": "Single Family Residential",
    "category": "residential",
    "description": "Low density single family residential district",
    "min_lot_sqft": 10000,
    "max_lot_coverage": 0.35,
    "max_height_ft": 35,
    "max_stories": 2.5,
    "front_setback_ft": 30,
    "side_setback_ft": 8,
    "rear_setback_ft": 30,
    "max_far": null,
    "allowed_uses": ["single_family", "home_occupation"],
    "conditional_uses": ["church", "school", "adu"],
    "prohibited_uses": ["commercial", "industrial", "multi_family"],
    "parking_required": "2 spaces per dwelling unit",
    "notes": "Any special conditions",
    "code_section": "Section 153.040",
    "confidence": "high"
  }
]

RULES:
- Extract EVERY district you find in the code
- Use null for values not specified
- category must be: residential, commercial, industrial, mixed, downtown, office, public, parks
- confidence: "high" if clearly stated, "medium" if inferred, "low" if uncertain
- Include the code section reference

Return ONLY valid JSON array, no other text.`, jurisdictionID, capText(codeText, zoneTextCap))
}

func permitsPrompt(jurisdictionID, codeText string) string {
	return fmt.Sprintf(`You are extracting permit requirements from a municipal code.

JURISDICTION: %s

MUNICIPAL CODE TEXT:
%s

Extract ALL permit types into this JSON format:

[
  {
    "permit_type": "deck",
    "category": "building",
    "description": "Permit for deck construction or replacement",
    "required_for": "Decks over 200 sq ft or 30 inches above grade",
    "exemptions": "Decks under 200 sq ft and under 30 inches",
    "fee_base": 75.00,
    "fee_formula": "$75 base + $0.15 per square foot",
    "review_days": 5,
    "requires_plans": true,
    "requires_inspection": true,
    "inspection_types": ["footing", "framing", "final"],
    "code_section": "Section 105.2",
    "confidence": "high"
  }
]

CATEGORIES to look for:
- building: construction, additions, decks, fences, sheds, pools, demolition
- trade: electrical, plumbing, HVAC, roofing, mechanical
- commercial: tenant buildout, sign, change of use, occupancy
- license: business license, contractor, rental registration
- health: food service, pool, tattoo, massage
- special: driveway, sidewalk, special event, temporary

Return ONLY valid JSON array.`, jurisdictionID, capText(codeText, permitTextCap))
}

func feesPrompt(jurisdictionID, feeText string) string {
	return fmt.Sprintf(`Extract the fee schedule into JSON format.

JURISDICTION: %s

FEE SCHEDULE TEXT:
%s

Format:
[
  {
    "permit_type": "building_permit_residential",
    "description": "Residential building permit",
    "fee_type": "flat",
    "base_fee": 100.00,
    "per_sqft_fee": 0.25,
    "minimum_fee": 100.00,
    "maximum_fee": null,
    "notes": "Plan review additional 65%%",
    "confidence": "high"
  }
]

fee_type options: "flat", "per_sqft", "percentage", "tiered", "calculated"

Return ONLY valid JSON array.`, jurisdictionID, capText(feeText, feeTextCap))
}

func buildingCodesPrompt(jurisdictionID, codeText, codeType string) string {
	return fmt.Sprintf(`Extract building code requirements into structured chunks.

JURISDICTION: %s
CODE TYPE: %s

CODE TEXT:
%s

Format as practical chunks that answer common questions:
[
  {
    "code_type": "local",
    "section": "1419-09",
    "title": "Rear Yard Setback Requirements",
    "content": "Rear yards shall be provided as follows: (a) For residential districts, minimum 25 feet...",
    "keywords": ["setback", "rear yard", "residential"],
    "applies_to": ["residential", "commercial"],
    "confidence": "high"
  }
]

code_type: "local", "IBC", "IRC", "IPC", "IMC", "IFC", "state"

Focus on extractable, useful requirements. Skip boilerplate.

Return ONLY valid JSON array.`, jurisdictionID, codeType, capText(codeText, codeTextCap))
}

func questionsPrompt(jurisdictionID string, zones []Zone, permits []Permit) string {
	if len(zones) > 10 {
		zones = zones[:10]
	}
	if len(permits) > 15 {
		permits = permits[:15]
	}
	zoneJSON, _ := json.MarshalIndent(zones, "", "  ")
	permitJSON, _ := json.MarshalIndent(permits, "", "  ")

	return fmt.Sprintf(`Generate common questions and answers for %[1]s.

ZONING DATA:
%[2]s

PERMIT DATA:
%[3]s

Generate 15-20 practical Q&A pairs residents and businesses would ask:

[
  {
    "question": "Do I need a permit to build a deck?",
    "category": "deck",
    "answer": "Yes, decks require a building permit in %[1]s. Decks over 200 sq ft or more than 30 inches above grade require a permit. The fee is $75 plus $0.15 per square foot. Plans showing dimensions and attachment to the house are required.",
    "related_permits": ["deck", "building_permit"],
    "code_reference": "Section 105.2"
  }
]

Cover these topics:
- Fence permits and height limits
- Deck permits
- Shed/accessory structures
- Home business rules
- Building height limits
- Business licenses
- Sign permits
- Rental registration

Return ONLY valid JSON array.`, jurisdictionID, zoneJSON, permitJSON)
}

func industryPermitsPrompt(jurisdictionID, codeText, industry string) string {
	instruction, ok := industryInstructions[industry]
	if !ok {
		instruction = fmt.Sprintf("Extract all %s industry permits.", industry)
	}

	return fmt.Sprintf(`Extract %[1]s industry permits from this municipal code.

JURISDICTION: %[2]s

%[3]s

CODE TEXT:
%[4]s

Format:
[
  {
    "permit_type": "restaurant",
    "category": "%[1]s",
    "description": "Restaurant food service establishment",
    "zones_allowed": ["CC-M", "CC-A", "DD-A"],
    "zones_prohibited": ["SF-*", "RM-*"],
    "requirements": ["Health dept license", "Building permit", "Sign permit"],
    "fee_base": 150.00,
    "review_days": 14,
    "code_section": "Section XXX",
    "confidence": "high"
  }
]

If no %[1]s permits are found, return empty array [].

Return ONLY valid JSON array.`, industry, jurisdictionID, instruction, capText(codeText, industryTextCap))
}
