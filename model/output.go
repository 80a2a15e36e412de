// Package model - Ausgaben eines Graphen
//
// Outputs ist eine geordnete Abbildung von Ausgabenamen auf Tensoren.
// hidden_states und attentions sind immer vorhanden; wurden sie nicht
// angefordert, sind sie leere Sequenzen.

package model

import (
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/ollama/albert/ml"
)

// Ausgabenamen
const (
	LastHiddenState  = "last_hidden_state"
	PoolerOutput     = "pooler_output"
	Logits           = "logits"
	StartLogits      = "start_logits"
	EndLogits        = "end_logits"
	PredictionLogits = "prediction_logits"
	SOPLogits        = "sop_logits"
	HiddenStates     = "hidden_states"
	Attentions       = "attentions"
)

// Outputs haelt die Ausgaben in Einfuegereihenfolge
type Outputs struct {
	om *orderedmap.OrderedMap[string, ml.Tensor]

	hiddenStates []ml.Tensor
	attentions   []ml.Tensor
}

// NewOutputs erstellt leere Ausgaben
func NewOutputs() *Outputs {
	return &Outputs{om: orderedmap.New[string, ml.Tensor]()}
}

// Set setzt einen Tensor-Ausgang
func (o *Outputs) Set(name string, t ml.Tensor) {
	o.om.Set(name, t)
}

// Get gibt einen Tensor-Ausgang zurueck
func (o *Outputs) Get(name string) (ml.Tensor, bool) {
	return o.om.Get(name)
}

// SetSequences setzt hidden_states und attentions; nil wird zu leer
func (o *Outputs) SetSequences(hiddenStates, attentions []ml.Tensor) {
	o.hiddenStates = append([]ml.Tensor{}, hiddenStates...)
	o.attentions = append([]ml.Tensor{}, attentions...)
}

// HiddenStates gibt die Hidden States in Layer-Reihenfolge zurueck
func (o *Outputs) HiddenStates() []ml.Tensor {
	return append([]ml.Tensor{}, o.hiddenStates...)
}

// Attentions gibt die Attention-Wahrscheinlichkeiten in Layer-Reihenfolge zurueck
func (o *Outputs) Attentions() []ml.Tensor {
	return append([]ml.Tensor{}, o.attentions...)
}

// Keys gibt alle Ausgabenamen zurueck; hidden_states und attentions stehen am Ende
func (o *Outputs) Keys() []string {
	keys := make([]string, 0, o.om.Len()+2)
	for pair := o.om.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return append(keys, HiddenStates, Attentions)
}

// Tensors iteriert ueber die Tensor-Ausgaben in Einfuegereihenfolge
func (o *Outputs) Tensors() iter.Seq2[string, ml.Tensor] {
	return func(yield func(string, ml.Tensor) bool) {
		for pair := o.om.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// All gibt alle Tensoren zurueck, die der Graph berechnet: die Ausgaben
// und die Elemente von hidden_states und attentions
func (o *Outputs) All() []ml.Tensor {
	var ts []ml.Tensor
	for _, t := range o.Tensors() {
		ts = append(ts, t)
	}
	ts = append(ts, o.hiddenStates...)
	return append(ts, o.attentions...)
}
