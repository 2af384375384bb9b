package catalog

import (
	"fmt"
	"strings"
	"unicode"
)

// Dermatologist is a contactable specialist.
type Dermatologist struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Specialty   string  `json:"specialty"`
	Phone       string  `json:"phone"`
	WhatsApp    string  `json:"whatsapp"`
	Experience  string  `json:"experience"`
	Rating      float32 `json:"rating"`
	CallURL     string  `json:"call_url"`
	WhatsAppURL string  `json:"whatsapp_url"`
}

var dermatologists = []Dermatologist{
	{ID: 1, Name: "Dr. Sarah Johnson", Specialty: "Acne & Scarring Specialist", Phone: "+1234567890", WhatsApp: "+1234567890", Experience: "12 years", Rating: 4.8},
	{ID: 2, Name: "Dr. Michael Chen", Specialty: "Anti-Aging & Cosmetic Dermatology", Phone: "+1234567891", WhatsApp: "+1234567891", Experience: "15 years", Rating: 4.9},
	{ID: 3, Name: "Dr. Priya Sharma", Specialty: "Skin Allergy & Eczema", Phone: "+1234567892", WhatsApp: "+1234567892", Experience: "10 years", Rating: 4.7},
	{ID: 4, Name: "Dr. James Wilson", Specialty: "Laser & Aesthetic Dermatology", Phone: "+1234567893", WhatsApp: "+1234567893", Experience: "8 years", Rating: 4.6},
	{ID: 5, Name: "Dr. Maria Garcia", Specialty: "Pediatric Dermatology", Phone: "+1234567894", WhatsApp: "+1234567894", Experience: "14 years", Rating: 4.9},
}

// Dermatologists lists the directory with contact links filled in.
func Dermatologists() []Dermatologist {
	out := make([]Dermatologist, len(dermatologists))
	for i, d := range dermatologists {
		out[i] = withLinks(d)
	}
	return out
}

// FindDermatologist looks a specialist up by id.
func FindDermatologist(id int) (Dermatologist, bool) {
	for _, d := range dermatologists {
		if d.ID == id {
			return withLinks(d), true
		}
	}
	return Dermatologist{}, false
}

func withLinks(d Dermatologist) Dermatologist {
	d.CallURL = "tel:" + d.Phone
	d.WhatsAppURL = fmt.Sprintf("https://wa.me/%s", digitsOnly(d.WhatsApp))
	return d
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
