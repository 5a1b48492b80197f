// Package pefilter controls Photon etc. LLTF tunable filters.
//
// A Handle is created from an XML configuration file that lists the filter
// systems available on the host:
//
//	<PEFilterConfiguration version="1">
//	  <System name="LLTF-VIS-0001" driver="simulated" harmonicFilter="true">
//	    <Grating name="VIS" min="400" max="1000" extendedMin="390" extendedMax="1010"/>
//	  </System>
//	</PEFilterConfiguration>
//
// Creating a handle does not talk to hardware. Open connects to one system,
// after which wavelength, grating and harmonic filter calls are available.
// Every failure carries a Status whose ordinal matches the vendor C API;
// use StatusOf to recover it.
//
// Hardware access goes through a Driver. The "simulated" driver is always
// registered; its faults are configured through PEFILTER_SIM_SPEC. Building
// with the pefilter_native tag makes New use the vendor library instead.
package pefilter
