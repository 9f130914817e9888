package endpoint

import "vetcare/profile"

// AccountView is the public shape of an account. Credentials never leave the service.
type AccountView struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Surname string  `json:"surname"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	PetIDs  []int64 `json:"pets"`
}

// LoginView is returned after a successful login.
type LoginView struct {
	Email     string `json:"email"`
	Token     string `json:"token"`
	AccountID int64  `json:"accountId"`
}

// ScheduleView is one working window of a professional.
type ScheduleView struct {
	ID    int64  `json:"id"`
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// SpeciesView is a species a professional treats.
type SpeciesView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProfessionalView is the public shape of a professional aggregate.
type ProfessionalView struct {
	ID        int64          `json:"id"`
	License   string         `json:"license"`
	Name      string         `json:"name"`
	Surname   string         `json:"surname"`
	Address   string         `json:"address"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Rating    *float64       `json:"rating"`
	Schedules []ScheduleView `json:"schedules"`
	Species   []SpeciesView  `json:"species"`
}

// RatingView reports a recomputed rating; nil means no ratings yet.
type RatingView struct {
	ProfessionalID int64    `json:"professionalId"`
	Rating         *float64 `json:"rating"`
}

func accountView(a profile.Account) AccountView {
	pets := a.PetIDs
	if pets == nil {
		pets = []int64{}
	}
	return AccountView{ID: a.ID, Name: a.Name, Surname: a.Surname, Email: a.Email, Phone: a.Phone, PetIDs: pets}
}

func professionalView(p profile.Professional) ProfessionalView {
	v := ProfessionalView{
		ID:        p.ID,
		License:   p.License,
		Name:      p.Name,
		Surname:   p.Surname,
		Address:   p.Address,
		Phone:     p.Phone,
		Email:     p.Email,
		Rating:    p.Rating,
		Schedules: make([]ScheduleView, 0, len(p.Schedules)),
		Species:   make([]SpeciesView, 0, len(p.Species)),
	}
	for _, s := range p.Schedules {
		v.Schedules = append(v.Schedules, ScheduleView{ID: s.ID, Day: s.Day, Start: s.Start, End: s.End})
	}
	for _, s := range p.Species {
		v.Species = append(v.Species, SpeciesView{ID: s.ID, Name: s.Name})
	}
	return v
}
