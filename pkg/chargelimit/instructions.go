package chargelimit

const (
	instructionsLenovo = "Lenovo: Open Lenovo Vantage → Device → Power → Battery → Enable Conservation Mode (limits charge to ~75-80%).\n\n" +
		"Alternatively, check BIOS → Config → Power → Conservation Mode."

	instructionsASUS = "ASUS: Open MyASUS app → Customization → Battery Health Charging → Select 'Balanced Mode' (80% limit).\n\n" +
		"Alternatively, check BIOS → Advanced → Power → Battery Health Charging."

	instructionsDell = "Dell: Open Dell Power Manager → Battery Settings → Custom → Set Stop Charging to 80%.\n\n" +
		"Alternatively, check BIOS → Power Management → Battery Charge Threshold."

	instructionsHP = "HP: Open HP Support Assistant → Battery → Battery Health Manager → Select 'Maximize My Battery Health' (80% limit).\n\n" +
		"Alternatively, check BIOS → Advanced → Power Options → Battery Health Manager."

	instructionsGeneric = "Battery Health Guard (80% Limit) is not automatically supported on your laptop model.\n\n" +
		"To manually enable 80% charge limiting:\n" +
		"1. Check your laptop manufacturer's app (e.g., Lenovo Vantage, MyASUS, Dell Power Manager, HP Support Assistant)\n" +
		"2. Look for Battery Health, Conservation Mode, or Charge Threshold settings\n" +
		"3. Enable the 80% limit option\n" +
		"4. Alternatively, check your BIOS settings for battery charge threshold options"
)
