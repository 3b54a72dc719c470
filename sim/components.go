package sim

import "github.com/TheBitDrifter/pen"

type Position struct{ Vec3 }

type Velocity struct{ Vec3 }

type Scale struct{ Vec3 }

// Rotation is a unit quaternion.
type Rotation struct {
	X, Y, Z, W float64
}

// Identity is the rotation every entity is created with.
var Identity = Rotation{W: 1}

type Speed struct {
	Value float64
}

// Meal is a doofus's pairing with one food entity. Target is
// pen.InvalidReference while the doofus is not eating.
type Meal struct {
	Target      pen.Reference
	Destination Vec3
	Arrived     bool
}

var (
	PositionComponent = pen.FactoryNewComponent[Position]()
	RotationComponent = pen.FactoryNewComponent[Rotation]()
	ScaleComponent    = pen.FactoryNewComponent[Scale]()
	VelocityComponent = pen.FactoryNewComponent[Velocity]()
	SpeedComponent    = pen.FactoryNewComponent[Speed]()
	MealComponent     = pen.FactoryNewComponent[Meal]()
)

var (
	doofusComponents = []pen.Component{
		PositionComponent, RotationComponent, ScaleComponent,
		VelocityComponent, SpeedComponent, MealComponent,
	}
	foodComponents = []pen.Component{PositionComponent, RotationComponent, ScaleComponent}
)
