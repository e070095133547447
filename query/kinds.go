package query

// Kind names an entity family and the command suffix the server uses for it.
type Kind struct {
	Name  string
	Class string
	blobs bool
}

var (
	KindImage         = Kind{Name: "Image", Class: "_Image", blobs: true}
	KindVideo         = Kind{Name: "Video", Class: "_Video", blobs: true}
	KindFrame         = Kind{Name: "Frame", Class: "_Frame", blobs: true}
	KindClip          = Kind{Name: "Clip", Class: "_Clip", blobs: true}
	KindDescriptor    = Kind{Name: "Descriptor", Class: "_Descriptor", blobs: true}
	KindDescriptorSet = Kind{Name: "DescriptorSet", Class: "_DescriptorSet"}
	KindBoundingBox   = Kind{Name: "BoundingBox", Class: "_BoundingBox", blobs: true}
	KindPolygon       = Kind{Name: "Polygon", Class: "_Polygon"}
	KindEntity        = Kind{Name: "Entity"}
	KindConnection    = Kind{Name: "Connection"}
)

var builtinKinds = []Kind{
	KindImage, KindVideo, KindFrame, KindClip, KindDescriptor,
	KindDescriptorSet, KindBoundingBox, KindPolygon,
}

func (k Kind) Add() string { return "Add" + k.Name }
func (k Kind) Find() string { return "Find" + k.Name }
func (k Kind) Update() string { return "Update" + k.Name }
func (k Kind) Delete() string { return "Delete" + k.Name }

// HasBlobs reports whether find commands of this kind can return blobs.
func (k Kind) HasBlobs() bool { return k.blobs }

func (k Kind) String() string { return k.Name }

// KindForClass maps a server class to its kind. User classes are entities.
func KindForClass(class string) Kind {
	for _, k := range builtinKinds {
		if k.Class == class {
			return k
		}
	}
	return KindEntity
}
