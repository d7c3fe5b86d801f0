package models

import (
	"errors"
	"strings"
	"testing"
)

func TestStyle_IsValid(t *testing.T) {
	tests := []struct {
		style Style
		want  bool
	}{
		{StyleCartoon, true},
		{StyleHandDrawn, true},
		{StyleAnime, true},
		{StyleRealistic, true},
		{StyleRetro, true},
		{StyleMinimalist, true},
		{Style("oil-painting"), false},
		{Style(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			if got := tt.style.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreferences_Normalize(t *testing.T) {
	tests := []struct {
		name  string
		prefs Preferences
		want  Preferences
	}{
		{
			name:  "valid untouched",
			prefs: Preferences{Style: StyleAnime, StyleStrength: 3, NumVariants: 4, MemeMode: true},
			want:  Preferences{Style: StyleAnime, StyleStrength: 3, NumVariants: 4, MemeMode: true},
		},
		{
			name:  "zero values clamped",
			prefs: Preferences{},
			want:  Preferences{Style: StyleCartoon, StyleStrength: 2, NumVariants: 1},
		},
		{
			name:  "out of range clamped",
			prefs: Preferences{Style: Style("bogus"), StyleStrength: 9, NumVariants: -1},
			want:  Preferences{Style: StyleCartoon, StyleStrength: 2, NumVariants: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prefs.Normalize()
			if tt.prefs != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", tt.prefs, tt.want)
			}
		})
	}
}

func TestGenerateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     GenerateRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  GenerateRequest{Prompt: "a cat", Style: StyleCartoon, StyleStrength: 2, NumVariants: 3},
		},
		{
			name:    "prompt too long",
			req:     GenerateRequest{Prompt: strings.Repeat("字", MaxPromptLen+1), Style: StyleCartoon},
			wantErr: ErrPromptTooLong,
		},
		{
			name: "prompt at limit",
			req:  GenerateRequest{Prompt: strings.Repeat("字", MaxPromptLen), Style: StyleCartoon},
		},
		{
			name:    "bad style",
			req:     GenerateRequest{Prompt: "a cat", Style: Style("bogus")},
			wantErr: ErrInvalidStyle,
		},
		{
			name:    "strength out of range",
			req:     GenerateRequest{Prompt: "a cat", Style: StyleCartoon, StyleStrength: 4},
			wantErr: ErrInvalidStrength,
		},
		{
			name:    "variants out of range",
			req:     GenerateRequest{Prompt: "a cat", Style: StyleCartoon, NumVariants: 7},
			wantErr: ErrInvalidVariants,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewGenerationResult(t *testing.T) {
	images := []Variant{
		{ID: "v1", ImageURL: "/uploads/1.png"},
		{ID: "v2", ImageURL: "/uploads/2.png"},
	}

	result, err := NewGenerationResult("gen-1", "optimized", "2024-01-01T00:00:00Z", images)
	if err != nil {
		t.Fatalf("NewGenerationResult() error = %v", err)
	}
	if result.Selected.ID != "v1" {
		t.Errorf("Selected = %v, want primary v1", result.Selected.ID)
	}
	if result.Primary().ID != "v1" {
		t.Errorf("Primary() = %v, want v1", result.Primary().ID)
	}

	if _, err := NewGenerationResult("gen-2", "", "", nil); !errors.Is(err, ErrNoImages) {
		t.Errorf("NewGenerationResult(empty) error = %v, want ErrNoImages", err)
	}
}

func TestGenerationResult_Select(t *testing.T) {
	images := []Variant{
		{ID: "v1", ImageURL: "/uploads/1.png"},
		{ID: "v2", ImageURL: "/uploads/2.png"},
	}
	result, err := NewGenerationResult("gen-1", "", "", images)
	if err != nil {
		t.Fatalf("NewGenerationResult() error = %v", err)
	}

	if err := result.Select(images[1]); err != nil {
		t.Fatalf("Select(v2) error = %v", err)
	}
	if result.Selected.ID != "v2" {
		t.Errorf("Selected = %v, want v2", result.Selected.ID)
	}

	if err := result.Select(Variant{ID: "ghost"}); !errors.Is(err, ErrVariantNotInSet) {
		t.Errorf("Select(ghost) error = %v, want ErrVariantNotInSet", err)
	}
	if result.Selected.ID != "v2" {
		t.Errorf("failed Select changed state: Selected = %v", result.Selected.ID)
	}
}
