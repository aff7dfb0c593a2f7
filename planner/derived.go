package planner

// Derived is a numeric field that is either computed from upstream fields
// or pinned by a manual override. While overridden, recalculation leaves
// the value untouched; clearing the override hands it back to the
// calculator on the next pass.
type Derived struct {
	Value      float64 `json:"value"`
	Overridden bool    `json:"overridden"`
}

// Compute sets the value unless a manual override is in effect.
func (d *Derived) Compute(v float64) {
	if d.Overridden {
		return
	}
	d.Value = v
}

// Override pins the field to v until an upstream edit clears it.
func (d *Derived) Override(v float64) {
	d.Value = v
	d.Overridden = true
}

// ClearOverride releases the pin; the next recalculation recomputes it.
func (d *Derived) ClearOverride() {
	d.Overridden = false
}
