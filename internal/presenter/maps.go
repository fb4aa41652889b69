// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/geotrail/internal/positioning"
)

const msgNoCapability localize.MsgID = "Geolocation is not supported on this host"

// failureMessages maps acquisition failure kinds to user facing messages.
var failureMessages = map[positioning.Kind]localize.MsgID{
	positioning.KindPermissionDenied: "Location permission denied",
	positioning.KindTimeout:          "Location request timed out",
	positioning.KindUnavailable:      "Location unavailable",
}

// Map tile sources per layer.
var tileURLs = map[Layer]string{
	LayerStandard:  "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	LayerSatellite: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
}
