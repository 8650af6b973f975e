package domain

import "github.com/google/uuid"

// Entity class names as written to the sink.
const (
	ClassGeoLocation  = "GeoLocation"
	ClassDistribution = "Distribution"
	ClassStrain       = "Strain"
	ClassDataSource   = "DataSource"
	ClassDataSet      = "DataSet"
)

// Item is the sink-facing form of an entity: named attributes, single-valued
// references and ordered collections of other items' identifiers.
type Item struct {
	Identifier  string              `json:"identifier"`
	ClassName   string              `json:"class"`
	Attributes  map[string]string   `json:"attributes,omitempty"`
	References  map[string]string   `json:"references,omitempty"`
	Collections map[string][]string `json:"collections,omitempty"`
}

// NewItem creates an empty item of the given class.
func NewItem(identifier, className string) Item {
	return Item{
		Identifier: identifier,
		ClassName:  className,
		Attributes: make(map[string]string),
	}
}

// SetAttribute stores value under name unless value is empty.
func (i *Item) SetAttribute(name, value string) {
	if value == "" {
		return
	}
	if i.Attributes == nil {
		i.Attributes = make(map[string]string)
	}
	i.Attributes[name] = value
}

// SetReference links the item to another item by identifier.
func (i *Item) SetReference(name, identifier string) {
	if identifier == "" {
		return
	}
	if i.References == nil {
		i.References = make(map[string]string)
	}
	i.References[name] = identifier
}

// SetCollection attaches an ordered list of identifiers. A nil list is stored as empty.
func (i *Item) SetCollection(name string, identifiers []string) {
	if i.Collections == nil {
		i.Collections = make(map[string][]string)
	}
	ids := make([]string, len(identifiers))
	copy(ids, identifiers)
	i.Collections[name] = ids
}

// NewIdentifier returns a random identifier scoped by class, e.g. "Distribution_5f0c...".
func NewIdentifier(className string) string {
	return className + "_" + uuid.NewString()
}
