package model

import "time"

// Departements lists the valid engineering departments (filières) of the
// faculty. Used to validate enseignant and horaire submissions.
var Departements = []string{
	"Génie Informatique",
	"Génie Civil",
	"Génie Électrique",
	"Génie Mécanique",
	"Architecture",
}

// IsValidDepartement reports whether d is a known filière.
func IsValidDepartement(d string) bool {
	for _, v := range Departements {
		if v == d {
			return true
		}
	}
	return false
}

// Enseignant is a faculty member profile. Optional fields are empty strings
// when not provided.
type Enseignant struct {
	ID         string
	Nom        string
	Prenom     string
	Titre      string
	Domaine    string
	Specialite string
	Email      string
	Telephone  string
	Bio        string
	URLPhoto   string
	DateAjout  time.Time
}

// Photo is a campus photo published on the public site.
type Photo struct {
	ID          string
	Titre       string
	Description string
	URLImage    string
	DateAjout   time.Time
	AjoutePar   string
}

// Horaire is a published schedule document (PDF) for one filière and one
// academic year.
type Horaire struct {
	ID              string
	Titre           string
	Filiere         string
	Annee           string
	URLPDF          string
	DatePublication time.Time
	PubliePar       string
}
