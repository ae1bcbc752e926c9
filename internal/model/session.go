package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// GameType categorises a session by the kind of games played during it.
type GameType string

const (
    GameTypeRhythm    GameType = "rhythm"
    GameTypeAction    GameType = "action"
    GameTypePuzzle    GameType = "puzzle"
    GameTypeAdventure GameType = "adventure"
    GameTypeMixed     GameType = "mixed"
)

// ValidGameType reports whether s is one of the known game types.
func ValidGameType(s string) bool {
    switch GameType(s) {
    case GameTypeRhythm, GameTypeAction, GameTypePuzzle, GameTypeAdventure, GameTypeMixed:
        return true
    }
    return false
}

// Session represents a bookable gaming time slot.  A slot is identified
// by its (date, start_time) pair, which is unique.  Sessions referenced
// by bookings are never deleted; they are deactivated instead.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name of the session.
//  Description     – free-text description.
//  GameType        – one of the GameType constants.
//  Date            – calendar day of the slot (time component ignored).
//  StartTime       – wall-clock start, "15:04:05".
//  EndTime         – wall-clock end, "15:04:05".
//  MaxParticipants – capacity of the slot.
//  PricePerPerson  – price charged per participant.
//  IsActive        – soft-delete flag; inactive sessions reject bookings.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Session struct {
    ID              uint64          // sessions.id
    Name            string          // sessions.name
    Description     string          // sessions.description
    GameType        GameType        // sessions.game_type
    Date            time.Time       // sessions.date
    StartTime       string          // sessions.start_time
    EndTime         string          // sessions.end_time
    MaxParticipants int             // sessions.max_participants
    PricePerPerson  decimal.Decimal // sessions.price_per_person
    IsActive        bool            // sessions.is_active
    CreatedAt       time.Time       // sessions.created_at
    UpdatedAt       time.Time       // sessions.updated_at
}

// StartsAt combines the session's date and start time into a single
// time.Time in the given location.  The location matters: the slot is a
// wall-clock moment at the venue, not a UTC instant.
func (s *Session) StartsAt(loc *time.Location) time.Time {
    st, err := time.Parse("15:04:05", s.StartTime)
    if err != nil {
        // start_time column also allows "15:04"
        st, err = time.Parse("15:04", s.StartTime)
        if err != nil {
            return time.Time{}
        }
    }
    return time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(),
        st.Hour(), st.Minute(), st.Second(), 0, loc)
}

// IsUpcoming reports whether the session starts strictly after now,
// interpreted in the given location.
func (s *Session) IsUpcoming(now time.Time, loc *time.Location) bool {
    starts := s.StartsAt(loc)
    if starts.IsZero() {
        return false
    }
    return starts.After(now)
}

// AvailableSpots returns the remaining capacity given the sum of
// participants across confirmed bookings.  The result is never negative.
func (s *Session) AvailableSpots(confirmedParticipants int) int {
    spots := s.MaxParticipants - confirmedParticipants
    if spots < 0 {
        return 0
    }
    return spots
}

// Availability is the public view of a session's remaining capacity.
type Availability struct {
    AvailableSpots  int  `json:"available_spots"`
    IsFull          bool `json:"is_full"`
    MaxParticipants int  `json:"max_participants"`
}

// Availability derives the Availability view from the confirmed
// participant sum.
func (s *Session) Availability(confirmedParticipants int) Availability {
    spots := s.AvailableSpots(confirmedParticipants)
    return Availability{
        AvailableSpots:  spots,
        IsFull:          spots == 0,
        MaxParticipants: s.MaxParticipants,
    }
}
