package handlers

import (
	"net/http"

	"github.com/Dosada05/tombola/tombola"
	"github.com/go-chi/chi/v5"
)

type variantSummary struct {
	Name           string `json:"name"`
	Min            int    `json:"min"`
	Max            int    `json:"max"`
	NumbersPerCard int    `json:"numbers_per_card"`
	Default        bool   `json:"default"`
}

type VariantHandler struct{}

func NewVariantHandler() *VariantHandler {
	return &VariantHandler{}
}

func (h *VariantHandler) List(w http.ResponseWriter, r *http.Request) {
	variants := tombola.Variants()
	out := make([]variantSummary, 0, len(variants))
	for _, v := range variants {
		out = append(out, variantSummary{
			Name:           v.Name,
			Min:            v.Min,
			Max:            v.Max,
			NumbersPerCard: v.NumbersPerCard,
			Default:        v.Name == tombola.DefaultVariant,
		})
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"variants": out}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Get returns one variant including the caption of every number.
func (h *VariantHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := tombola.VariantByName(chi.URLParam(r, "name"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"variant": v}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
