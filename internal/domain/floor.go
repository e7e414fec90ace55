package domain

// Floor is a floor map. Coordinates of its locations are in its pixel space.
type Floor struct {
	ID        int64   `json:"id"`
	Name      *string `json:"name"`
	Building  *string `json:"building"`
	Level     *string `json:"level"`
	ImagePath string  `json:"image_path"`
	WidthPx   int     `json:"width_px"`
	HeightPx  int     `json:"height_px"`
}

// Location is a photographed spot on a floor
type Location struct {
	ID        int64   `json:"id"`
	FloorID   int64   `json:"floor_id"`
	Name      *string `json:"name"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	ImagePath string  `json:"image_path"`
	Hint      *string `json:"hint"`
}

// LocationForGame is what a player sees before guessing; the true
// coordinates are omitted.
type LocationForGame struct {
	ID        int64   `json:"id"`
	FloorID   int64   `json:"floor_id"`
	ImagePath string  `json:"image_path"`
	Hint      *string `json:"hint"`
}

// ForGame strips the answer from a location
func (l Location) ForGame() LocationForGame {
	return LocationForGame{
		ID:        l.ID,
		FloorID:   l.FloorID,
		ImagePath: l.ImagePath,
		Hint:      l.Hint,
	}
}

// Guess is a player's answer for one location
type Guess struct {
	LocationID    int64    `json:"location_id"`
	GuessX        *float64 `json:"guess_x"`
	GuessY        *float64 `json:"guess_y"`
	SelectedFloor *int64   `json:"selected_floor,omitempty"`
}

// ScoreResult is the outcome of scoring a guess
type ScoreResult struct {
	Distance   float64 `json:"distance"`
	Score      int     `json:"score"`
	Correct    bool    `json:"correct"`
	FloorMatch bool    `json:"floor_match"`
}

// GuessResponse is a scored guess together with the answer, for the result screen
type GuessResponse struct {
	ScoreResult
	CorrectX    int   `json:"correct_x"`
	CorrectY    int   `json:"correct_y"`
	FloorID     int64 `json:"floor_id"`
	FloorWidth  int   `json:"floor_width"`
	FloorHeight int   `json:"floor_height"`
}

// QuickPlayResponse is the legacy linear-scored guess
type QuickPlayResponse struct {
	Distance    float64 `json:"distance"`
	Score       int     `json:"score"`
	MaxScore    int     `json:"max_score"`
	Correct     bool    `json:"correct"`
	CorrectX    int     `json:"correct_x"`
	CorrectY    int     `json:"correct_y"`
	FloorWidth  int     `json:"floor_width"`
	FloorHeight int     `json:"floor_height"`
}
